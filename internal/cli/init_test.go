package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSetupLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, "debug", "json", "test")
	logger.DebugContext(context.Background(), "hello", "k", "v")

	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) || !strings.Contains(out, `"component":"test"`) {
		t.Fatalf("unexpected json output %q", out)
	}

	buf.Reset()
	logger = setupLogger(&buf, "warn", "text", "test")
	logger.InfoContext(context.Background(), "dropped")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level, got %q", buf.String())
	}
}

func TestRunCleanup(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, "info", "text", "test")

	RunCleanup(logger, time.Second, func(context.Context) error { return nil })
	if !strings.Contains(buf.String(), "Shutdown complete") {
		t.Fatalf("missing completion log: %q", buf.String())
	}

	buf.Reset()
	RunCleanup(logger, time.Second, func(context.Context) error { return errors.New("boom") })
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("missing error log: %q", buf.String())
	}

	buf.Reset()
	RunCleanup(logger, 10*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	if !strings.Contains(buf.String(), "Shutdown timeout reached") {
		t.Fatalf("missing timeout log: %q", buf.String())
	}
}
