package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"narthex/internal/logging"
	"narthex/internal/queue"
	"narthex/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	logger := logging.WithContext(ctx, m.logger)

	message := m.classifyStageFailure(stageName, stageErr)
	item.SetFailed(stageName, message)

	details := services.Details(stageErr)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldStage, stageName),
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.Bool("retryable", services.IsRetryable(stageErr)),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else if stageErr != nil {
		attrs = append(attrs, logging.Error(stageErr))
	}
	logger.Error("stage failed", logging.Args(attrs...)...)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastItem(item)
	if m.notifier != nil {
		if err := m.notifier.NotifyCaptureFailed(ctx, item.OriginalFilename, stageName, stageErr); err != nil {
			logger.Warn("failure notification failed", logging.Error(err))
		}
	}
	m.checkSessionSettled(ctx)
}

func (m *Manager) classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return fmt.Sprintf("%s failed without error detail", stageName)
	}
	message := strings.TrimSpace(services.Details(stageErr).Message)
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	return message
}
