package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"runreel/internal/config"
	"runreel/internal/generation"
	"runreel/internal/logging"
	"runreel/internal/records"
)

// Daemon hosts the generation orchestrator behind a local HTTP API and
// enforces single-instance execution with a lock file. It also runs the
// janitor that fails records abandoned by an interrupted or crashed session.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *records.Store
	orch   *generation.Orchestrator

	lockPath string
	lock     *flock.Flock
	cron     *cron.Cron
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status reports daemon runtime information.
type Status struct {
	Running      bool                `json:"running"`
	Session      generation.Snapshot `json:"session"`
	RecordDBPath string              `json:"record_db_path"`
	LockFilePath string              `json:"lock_file_path"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *records.Store, orch *generation.Orchestrator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || orch == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, orchestrator, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "runreeld.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		orch:     orch,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		cron:     cron.New(),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, begins serving the API, schedules the
// janitor, and resumes any generation orphaned by a previous run.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another runreel daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return err
	}

	if _, err := d.cron.AddFunc(d.cfg.Janitor.Schedule, func() { d.sweepStale(runCtx) }); err != nil {
		d.api.stop()
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("schedule janitor: %w", err)
	}
	d.cron.Start()

	go d.resumeOrphans(runCtx)

	d.running.Store(true)
	d.logger.Info("runreel daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background work and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.orch.Cancel()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	stopCtx := d.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		d.logger.Warn("janitor did not finish before shutdown deadline")
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("runreel daemon stopped")
}

// Close releases all resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Addr reports the bound API address, empty until Start succeeds.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Session:      d.orch.Snapshot(),
		RecordDBPath: filepath.Join(d.cfg.Paths.DataDir, "records.db"),
		LockFilePath: d.lockPath,
	}
}

// resumeOrphans adopts the latest active record left behind by a previous
// process, if any. Runs once at startup in the background so a long resume
// never blocks Start.
func (d *Daemon) resumeOrphans(ctx context.Context) {
	resumed, err := d.orch.Resume(ctx)
	switch {
	case err != nil:
		d.logger.Warn("resume of orphaned generation failed", logging.Error(err))
	case resumed:
		d.logger.Info("orphaned generation resumed to a terminal state")
	}
}

// sweepStale fails records stuck in an active status well past the poll
// timeout. These are leftovers from processes that died without running
// their failure path.
func (d *Daemon) sweepStale(ctx context.Context) {
	staleAfter := time.Duration(d.cfg.Janitor.StaleAfterSeconds) * time.Second
	cutoff := time.Now().UTC().Add(-staleAfter)
	count, err := d.store.FailStale(ctx, cutoff)
	if err != nil {
		d.logger.Warn("stale record sweep failed", logging.Error(err))
		return
	}
	if count > 0 {
		d.logger.Info("stale records failed by janitor", logging.Int64("count", count))
	}
}
