package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger(Options{Level: "warn"})

	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("warn should be enabled at warn level")
	}
}

func TestWithComponentTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	WithComponent(logger, "session").Info("principal resolved")

	if !strings.Contains(buf.String(), "component=session") {
		t.Fatalf("expected component attr, got %q", buf.String())
	}
}

func TestWithComponentNilLogger(t *testing.T) {
	if WithComponent(nil, "apiclient") == nil {
		t.Fatal("expected a usable logger")
	}
}
