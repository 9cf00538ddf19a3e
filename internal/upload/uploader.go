// Package upload implements the workflow stage that moves captured card
// images from the local filesystem into durable storage.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"narthex/internal/config"
	"narthex/internal/logging"
	"narthex/internal/queue"
	"narthex/internal/services"
	"narthex/internal/stage"
	"narthex/internal/storage"
)

// ImageUploader abstracts the storage client for testing.
type ImageUploader interface {
	Upload(ctx context.Context, req storage.UploadRequest) (string, error)
	Configured() bool
}

// Uploader transfers a capture's image to durable storage and records the
// resulting storage key on the item.
type Uploader struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	uploader ImageUploader
}

// NewUploader constructs the upload stage handler using the configured
// storage client. A missing storage configuration is surfaced through
// HealthCheck rather than at construction time so the daemon can start and
// report the problem.
func NewUploader(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Uploader {
	client, err := storage.NewClient(cfg, logger)
	if err != nil {
		if logger != nil {
			logger.Warn("storage client unavailable", logging.Error(err))
		}
		return NewUploaderWithClient(cfg, store, logger, nil)
	}
	return NewUploaderWithClient(cfg, store, logger, client)
}

// NewUploaderWithClient allows injecting the storage collaborator (used in tests).
func NewUploaderWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client ImageUploader) *Uploader {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "upload"))
	}
	return &Uploader{store: store, cfg: cfg, logger: stageLogger, uploader: client}
}

func (u *Uploader) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, u.logger)
	item.ErrorMessage = ""
	if item.StorageKey != "" {
		logger.Info("image already uploaded", logging.String("storage_key", item.StorageKey))
		return nil
	}
	info, err := os.Stat(item.SourcePath)
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"upload",
			"validate inputs",
			fmt.Sprintf("Capture image %s is missing or unreadable; re-enqueue the capture", item.SourcePath),
			err,
		)
	}
	if item.SizeBytes == 0 {
		item.SizeBytes = info.Size()
	}
	logger.Info(
		"starting upload preparation",
		logging.String("source_path", item.SourcePath),
		logging.Int64("size_bytes", item.SizeBytes),
	)
	return nil
}

func (u *Uploader) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, u.logger)
	if item.StorageKey != "" {
		// A retry after a post-upload failure must not upload twice.
		logger.Info("skipping upload", logging.String("storage_key", item.StorageKey))
		return nil
	}
	if u.uploader == nil || !u.uploader.Configured() {
		return services.Wrap(
			services.ErrConfiguration,
			"upload",
			"check configuration",
			"Storage service is not configured; set storage.presign_endpoint and the storage API key",
			nil,
		)
	}

	data, err := os.ReadFile(item.SourcePath)
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"upload",
			"read image",
			fmt.Sprintf("Capture image %s could not be read; re-enqueue the capture", item.SourcePath),
			err,
		)
	}
	contentType := strings.TrimSpace(item.ContentType)
	if contentType == "" {
		contentType = detectContentType(item.SourcePath, data)
		item.ContentType = contentType
	}
	filename := item.OriginalFilename
	if filename == "" {
		filename = filepath.Base(item.SourcePath)
	}

	key, err := u.uploader.Upload(ctx, storage.UploadRequest{
		OrgID:       item.OrgID,
		Filename:    filename,
		ContentType: contentType,
		Side:        storage.SideFront,
		Data:        data,
	})
	if err != nil {
		return err
	}
	item.StorageKey = key
	item.SizeBytes = int64(len(data))
	logger.Info(
		"upload finished",
		logging.String("storage_key", key),
		logging.String("content_type", contentType),
	)
	return nil
}

func (u *Uploader) HealthCheck(ctx context.Context) stage.Health {
	if u.uploader == nil || !u.uploader.Configured() {
		return stage.Unhealthy("upload", "storage service not configured")
	}
	return stage.Healthy("upload")
}

// detectContentType prefers the file extension and falls back to content
// sniffing, which recognizes the common image formats.
func detectContentType(path string, data []byte) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		return byExt
	}
	return http.DetectContentType(data)
}
