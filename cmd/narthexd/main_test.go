package main

import (
	"context"
	"path/filepath"
	"testing"

	"narthex/internal/logging"
	"narthex/internal/stage"
	"narthex/internal/testsupport"
)

func TestBuildStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	cardStore := testsupport.MustOpenCards(t, cfg)

	set := buildStages(cfg, store, cardStore, logging.NewNop())
	if set.Uploader == nil || set.Extractor == nil || set.Saver == nil {
		t.Fatalf("expected all pipeline stages built, got %#v", set)
	}

	ctx := context.Background()
	for _, handler := range []stage.Handler{set.Uploader, set.Extractor, set.Saver} {
		health := handler.HealthCheck(ctx)
		if health.Name == "" {
			t.Fatalf("expected named stage health, got %#v", health)
		}
	}
}

func TestBuildSocketPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	expected := filepath.Join(cfg.Paths.LogDir, "narthexd.sock")
	if got := buildSocketPath(cfg); got != expected {
		t.Fatalf("expected socket path %q, got %q", expected, got)
	}

	if got := buildSocketPath(nil); got != filepath.Join("", "narthexd.sock") {
		t.Fatalf("unexpected default socket path %q", got)
	}
}
