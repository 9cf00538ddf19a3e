package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"narthex/internal/services"
)

func TestConsoleHandlerRendersAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelInfo))

	logger.Info("stage started", String(FieldStage, "upload"), Int64(FieldItemID, 7))

	out := buf.String()
	if !strings.Contains(out, "INFO stage started") {
		t.Fatalf("missing level/message: %q", out)
	}
	if !strings.Contains(out, "stage=upload") || !strings.Contains(out, "item_id=7") {
		t.Fatalf("missing attributes: %q", out)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelWarn))

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record should be filtered: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelInfo))

	ctx := services.WithItemID(context.Background(), 42)
	ctx = services.WithStage(ctx, "extract")
	ctx = services.WithOrg(ctx, "org-1")

	WithContext(ctx, logger).Info("working")

	out := buf.String()
	for _, want := range []string{"item_id=42", "stage=extract", "org_id=org-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %q", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != slog.LevelDebug {
		t.Fatal("debug level not parsed")
	}
	if parseLevel("nonsense") != slog.LevelInfo {
		t.Fatal("unknown level should default to info")
	}
}
