package main

import (
	"log/slog"
	"path/filepath"

	"narthex/internal/cards"
	"narthex/internal/config"
	"narthex/internal/extraction"
	"narthex/internal/persist"
	"narthex/internal/queue"
	"narthex/internal/upload"
	"narthex/internal/workflow"
)

func buildStages(cfg *config.Config, store *queue.Store, cardStore *cards.Store, logger *slog.Logger) workflow.StageSet {
	return workflow.StageSet{
		Uploader:  upload.NewUploader(cfg, store, logger),
		Extractor: extraction.NewExtractor(cfg, store, cardStore, logger),
		Saver:     persist.NewSaver(cfg, store, cardStore, logger),
	}
}

func buildSocketPath(cfg *config.Config) string {
	if cfg == nil {
		return filepath.Join("", "narthexd.sock")
	}
	return filepath.Join(cfg.Paths.LogDir, "narthexd.sock")
}
