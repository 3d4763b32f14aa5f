package daemon

import (
	"context"
	"testing"
	"time"

	"runreel/internal/generation"
	"runreel/internal/logging"
	"runreel/internal/records"
	"runreel/internal/services/tavus"
	"runreel/internal/testsupport"
)

func newTestDaemon(t *testing.T) (*Daemon, *records.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	provider := &stubProvider{}
	orch := generation.New(cfg, store, provider, logging.NewNop())
	d, err := New(cfg, store, orch, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if !d.Status().Running {
		t.Fatal("daemon should report running")
	}
	if d.Addr() == "" {
		t.Fatal("api should be bound")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("second start on the same daemon should fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("daemon should report stopped")
	}
	d.Stop() // idempotent
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	provider := &stubProvider{}

	first, err := New(cfg, store, generation.New(cfg, store, provider, logging.NewNop()), logging.NewNop())
	if err != nil {
		t.Fatalf("New first: %v", err)
	}
	second, err := New(cfg, store, generation.New(cfg, store, provider, logging.NewNop()), logging.NewNop())
	if err != nil {
		t.Fatalf("New second: %v", err)
	}

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start first: %v", err)
	}
	defer first.Stop()

	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second instance should be blocked by the lock")
	}
}

func TestDaemonSweepStale(t *testing.T) {
	d, store := newTestDaemon(t)
	ctx := context.Background()

	rec, err := store.CreatePending(ctx, "owner-test", "subject-stale", "script")
	if err != nil {
		t.Fatalf("CreatePending: %v", err)
	}

	// A cutoff in the future makes the fresh record stale immediately.
	d.cfg.Janitor.StaleAfterSeconds = -1
	d.sweepStale(ctx)

	got, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != records.StatusFailed {
		t.Fatalf("stale record status = %s, want failed", got.Status)
	}
}

func TestDaemonResumeAtStartup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	provider := &stubProvider{
		status: tavus.VideoStatus{Status: "completed", HostedURL: "https://cdn.example/resumed.mp4"},
	}
	orch := generation.New(cfg, store, provider, logging.NewNop())
	d, err := New(cfg, store, orch, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	orphan, err := store.CreatePending(ctx, "owner-test", "subject-r", "script")
	if err != nil {
		t.Fatalf("CreatePending: %v", err)
	}
	if err := store.MarkProcessing(ctx, orphan.ID, "job-r"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.GetByID(ctx, orphan.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Status == records.StatusCompleted {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("orphaned record was not resumed to completion")
}
