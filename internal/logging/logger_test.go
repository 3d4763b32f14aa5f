package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"runreel/internal/logging"
	"runreel/internal/services"
)

func TestNewConsoleWritesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	component := logging.NewComponentLogger(logger, "orchestrator")
	component.Info("session started", logging.String(logging.FieldRecordID, "rec-1"))

	out := buf.String()
	if !strings.Contains(out, "[orchestrator]") {
		t.Fatalf("expected component tag in output, got %q", out)
	}
	if !strings.Contains(out, "record_id=rec-1") {
		t.Fatalf("expected record id field in output, got %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug output should be filtered at info level, got %q", buf.String())
	}
}

func TestWithContextCarriesRecordAndPhase(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := services.WithRecordID(context.Background(), "rec-9")
	ctx = services.WithPhase(ctx, "queued")
	logging.WithContext(ctx, logger).Info("poll scheduled")

	out := buf.String()
	if !strings.Contains(out, "record_id=rec-9") || !strings.Contains(out, "phase=queued") {
		t.Fatalf("expected context fields in output, got %q", out)
	}
}
