package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"runreel/internal/notifications"
	"runreel/internal/testsupport"
)

func TestNoopWhenUnconfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := notifications.NewService(cfg)
	if err := svc.NotifyGenerationCompleted(context.Background(), "run-1", "https://x/v.mp4"); err != nil {
		t.Fatalf("noop notify returned error: %v", err)
	}
}

func TestNtfyPublishesCompletion(t *testing.T) {
	var gotTitle, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(cfg)
	if err := svc.NotifyGenerationCompleted(context.Background(), "run-7", "https://x/v.mp4"); err != nil {
		t.Fatalf("NotifyGenerationCompleted failed: %v", err)
	}
	if gotTitle != "Video ready" {
		t.Fatalf("unexpected title: %q", gotTitle)
	}
	if !strings.Contains(gotBody, "run-7") || !strings.Contains(gotBody, "https://x/v.mp4") {
		t.Fatalf("unexpected body: %q", gotBody)
	}
}

func TestNtfySurfacesRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(cfg)
	if err := svc.NotifyGenerationFailed(context.Background(), "run-7", "boom"); err == nil {
		t.Fatal("expected error on rejected notification")
	}
}

func TestDisabledCategoriesSkipPublishing(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Completion = false

	svc := notifications.NewService(cfg)
	if err := svc.NotifyGenerationCompleted(context.Background(), "run-1", "url"); err != nil {
		t.Fatalf("disabled notify returned error: %v", err)
	}
	if called {
		t.Fatal("expected no publish for disabled category")
	}
}
