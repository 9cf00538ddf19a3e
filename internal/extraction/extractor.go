// Package extraction implements the workflow stage that fingerprints a card
// image, screens it against already saved cards, and asks the vision service
// to read the handwriting into structured fields.
package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"narthex/internal/cards"
	"narthex/internal/config"
	"narthex/internal/logging"
	"narthex/internal/queue"
	"narthex/internal/services"
	"narthex/internal/stage"
	"narthex/internal/validation"
	"narthex/internal/vision"
)

// FieldExtractor abstracts the vision client for testing.
type FieldExtractor interface {
	ExtractCard(ctx context.Context, imageData []byte, mimeType string) (vision.Fields, string, error)
	Configured() bool
}

// CardFinder looks up previously saved cards by content fingerprint.
type CardFinder interface {
	FindByFingerprint(ctx context.Context, orgID, fingerprint string) (*cards.ConnectCard, error)
}

// Extractor runs duplicate screening and field extraction for one capture.
type Extractor struct {
	store     *queue.Store
	cfg       *config.Config
	logger    *slog.Logger
	extractor FieldExtractor
	finder    CardFinder
}

// NewExtractor constructs the extraction stage handler with the configured
// vision client and the cards store for duplicate screening.
func NewExtractor(cfg *config.Config, store *queue.Store, cardStore *cards.Store, logger *slog.Logger) *Extractor {
	client, err := vision.New(cfg, logger)
	if err != nil {
		if logger != nil {
			logger.Warn("vision client unavailable", logging.Error(err))
		}
		return NewExtractorWithDependencies(cfg, store, logger, nil, cardStore)
	}
	return NewExtractorWithDependencies(cfg, store, logger, client, cardStore)
}

// NewExtractorWithDependencies allows injecting collaborators (used in tests).
func NewExtractorWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, extractor FieldExtractor, finder CardFinder) *Extractor {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "extraction"))
	}
	return &Extractor{store: store, cfg: cfg, logger: stageLogger, extractor: extractor, finder: finder}
}

func (e *Extractor) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	item.ErrorMessage = ""
	if item.StorageKey == "" {
		return services.Wrap(
			services.ErrValidation,
			"extraction",
			"validate inputs",
			"Capture has no storage key; the upload stage must run first",
			nil,
		)
	}
	logger.Info("starting extraction preparation", logging.String("storage_key", item.StorageKey))
	return nil
}

func (e *Extractor) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)

	data, err := os.ReadFile(item.SourcePath)
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"extraction",
			"read image",
			fmt.Sprintf("Capture image %s could not be read; re-enqueue the capture", item.SourcePath),
			err,
		)
	}

	if item.Fingerprint == "" {
		sum := sha256.Sum256(data)
		item.Fingerprint = hex.EncodeToString(sum[:])
	}

	// Screen against saved cards before spending a vision call. The same
	// photo re-captured during a busy intake session is common.
	if e.finder != nil {
		existing, err := e.finder.FindByFingerprint(ctx, item.OrgID, item.Fingerprint)
		if err != nil {
			return services.Wrap(
				services.ErrTransient,
				"extraction",
				"duplicate screen",
				"Duplicate screening failed; the capture will be retried",
				err,
			)
		}
		if existing != nil {
			logger.Info(
				"capture matches a saved card",
				logging.String("fingerprint", item.Fingerprint),
				logging.Int64("card_id", existing.ID),
			)
			item.SetDuplicate(existing.ID)
			return nil
		}
	}

	if item.FieldsJSON != "" {
		// Retry after a post-extraction failure keeps the fields it paid for.
		logger.Info("skipping vision extraction", logging.String("fingerprint", item.Fingerprint))
		return nil
	}

	if e.extractor == nil || !e.extractor.Configured() {
		return services.Wrap(
			services.ErrConfiguration,
			"extraction",
			"check configuration",
			"Vision service is not configured; set vision.api_key or ANTHROPIC_API_KEY",
			nil,
		)
	}

	fields, rawText, err := e.extractor.ExtractCard(ctx, data, item.ContentType)
	if err != nil {
		return err
	}
	encoded, err := fields.Encode()
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"extraction",
			"encode fields",
			"Extracted fields could not be encoded",
			err,
		)
	}
	item.FieldsJSON = encoded

	warnings := validation.Check(fields)
	if len(warnings) > 0 {
		payload, err := json.Marshal(warnings)
		if err != nil {
			return services.Wrap(
				services.ErrValidation,
				"extraction",
				"encode warnings",
				"Validation warnings could not be encoded",
				err,
			)
		}
		item.WarningsJSON = string(payload)
	}

	logger.Info(
		"extraction finished",
		logging.String("fingerprint", item.Fingerprint),
		logging.Int("warnings", len(warnings)),
		logging.Int("response_chars", len(strings.TrimSpace(rawText))),
	)
	return nil
}

func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	if e.extractor == nil || !e.extractor.Configured() {
		return stage.Unhealthy("extraction", "vision service not configured")
	}
	return stage.Healthy("extraction")
}
