// Package persist implements the workflow stage that writes extracted cards
// into the cards database, grouping them into per-day batches.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"narthex/internal/cards"
	"narthex/internal/config"
	"narthex/internal/logging"
	"narthex/internal/queue"
	"narthex/internal/services"
	"narthex/internal/stage"
)

// CardWriter abstracts the cards store for testing.
type CardWriter interface {
	SaveCard(ctx context.Context, params cards.SaveCardParams) (cards.SaveResult, error)
}

// Saver persists an extracted capture as a connect card.
type Saver struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	writer CardWriter
}

// NewSaver constructs the persistence stage handler backed by the cards store.
func NewSaver(cfg *config.Config, store *queue.Store, cardStore *cards.Store, logger *slog.Logger) *Saver {
	return NewSaverWithWriter(cfg, store, logger, cardStore)
}

// NewSaverWithWriter allows injecting the cards collaborator (used in tests).
func NewSaverWithWriter(cfg *config.Config, store *queue.Store, logger *slog.Logger, writer CardWriter) *Saver {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "persist"))
	}
	return &Saver{store: store, cfg: cfg, logger: stageLogger, writer: writer}
}

func (s *Saver) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	item.ErrorMessage = ""
	if item.Fingerprint == "" || item.FieldsJSON == "" {
		return services.Wrap(
			services.ErrValidation,
			"persist",
			"validate inputs",
			"Capture has no extracted fields; the extraction stage must run first",
			nil,
		)
	}
	logger.Info("starting save preparation", logging.String("fingerprint", item.Fingerprint))
	return nil
}

func (s *Saver) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	if s.writer == nil {
		return services.Wrap(
			services.ErrConfiguration,
			"persist",
			"check configuration",
			"Cards store is unavailable; check data_dir permissions",
			nil,
		)
	}

	fields, err := stage.ParseFields(item.FieldsJSON)
	if err != nil {
		return err
	}

	params := cards.SaveCardParams{
		OrgID:           item.OrgID,
		LocationID:      item.LocationID,
		Day:             item.CreatedAt.Format("2006-01-02"),
		StorageKeyFront: item.StorageKey,
		Fingerprint:     item.Fingerprint,
		FieldsJSON:      item.FieldsJSON,
		WarningsJSON:    item.WarningsJSON,
	}
	if fields.Name != nil {
		params.PersonName = *fields.Name
	}
	if fields.Email != nil {
		params.PersonEmail = *fields.Email
	}
	if fields.Phone != nil {
		params.PersonPhone = *fields.Phone
	}
	if days := s.cfg.Workflow.DuplicatePersonWindowDays; days > 0 {
		params.DuplicatePersonWindow = time.Duration(days) * 24 * time.Hour
	}

	result, err := s.writer.SaveCard(ctx, params)
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"persist",
			"save card",
			"Saving the card failed; the capture will be retried",
			err,
		)
	}

	switch result.Outcome {
	case cards.OutcomeDuplicateImage:
		if result.Existing == nil {
			return services.Wrap(
				services.ErrTransient,
				"persist",
				"resolve duplicate",
				"Duplicate card could not be resolved; the capture will be retried",
				nil,
			)
		}
		logger.Info(
			"capture matches a saved card",
			logging.String("fingerprint", item.Fingerprint),
			logging.Int64("card_id", result.Existing.ID),
		)
		item.SetDuplicate(result.Existing.ID)
		return nil
	case cards.OutcomeDuplicatePerson:
		item.CardID = result.Card.ID
		note := fmt.Sprintf("Possible returning visitor: matches card %d", result.Existing.ID)
		if warnings, err := appendWarning(item.WarningsJSON, note); err == nil {
			item.WarningsJSON = warnings
		}
		logger.Info(
			"card saved with a returning-visitor note",
			logging.Int64("card_id", result.Card.ID),
			logging.Int64("matched_card_id", result.Existing.ID),
			logging.Int64(logging.FieldBatchID, result.Batch.ID),
		)
		return nil
	default:
		item.CardID = result.Card.ID
		logger.Info(
			"card saved",
			logging.Int64("card_id", result.Card.ID),
			logging.Int64(logging.FieldBatchID, result.Batch.ID),
			logging.String("batch_day", result.Batch.Day),
		)
		return nil
	}
}

func (s *Saver) HealthCheck(ctx context.Context) stage.Health {
	if s.writer == nil {
		return stage.Unhealthy("persist", "cards store unavailable")
	}
	return stage.Healthy("persist")
}

// appendWarning adds one entry to a JSON string-list payload, treating an
// empty payload as an empty list.
func appendWarning(payload, warning string) (string, error) {
	var warnings []string
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &warnings); err != nil {
			return "", err
		}
	}
	warnings = append(warnings, warning)
	encoded, err := json.Marshal(warnings)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
