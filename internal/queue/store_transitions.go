package queue

import (
	"context"
	"fmt"
	"time"
)

// resumeStatusCase computes the earliest stage boundary a settled item can
// restart from. Mirrors Item.ResumeStatus for bulk SQL updates.
const resumeStatusCase = `CASE
    WHEN storage_key IS NULL OR storage_key = '' THEN 'queued'
    WHEN fingerprint IS NULL OR fingerprint = ''
         OR fields_json IS NULL OR fields_json = '' THEN 'uploaded'
    ELSE 'extracted'
END`

// Retry moves a single failed or duplicate item back to the earliest stage
// whose output is missing. Work already done (uploaded image, extracted
// fields) is kept. Retrying a duplicate re-runs the save so the operator can
// force a second look after deleting the matched card.
func (s *Store) Retry(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
        SET status = `+resumeStatusCase+`,
            failed_stage = NULL, error_message = NULL, last_heartbeat = NULL,
            duplicate_of_card_id = NULL, updated_at = ?
        WHERE id = ? AND status IN (?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusFailed,
		StatusDuplicate,
	)
	if err != nil {
		return false, fmt.Errorf("retry item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RetryFailed moves failed and duplicate items back to their resume points
// for reprocessing. With no ids, every failed or duplicate item is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_items
            SET status = `+resumeStatusCase+`,
                failed_stage = NULL, error_message = NULL, last_heartbeat = NULL,
                duplicate_of_card_id = NULL, updated_at = ?
            WHERE status IN (?, ?)`,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusFailed,
			StatusDuplicate,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano), StatusFailed, StatusDuplicate)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE queue_items
        SET status = ` + resumeStatusCase + `,
            failed_stage = NULL, error_message = NULL, last_heartbeat = NULL,
            duplicate_of_card_id = NULL, updated_at = ?
        WHERE status IN (?, ?) AND id IN (` + placeholders + `)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing resets items in processing states back to the start of
// their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusUploading, StatusQueued,
		StatusExtracting, StatusUploaded,
		StatusSaving, StatusExtracted,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusUploading,
		StatusExtracting,
		StatusSaving,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns items stuck in processing back to the start
// of their current stage when heartbeats expire.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
        SET status = CASE status
            WHEN ? THEN ?
            WHEN ? THEN ?
            WHEN ? THEN ?
            ELSE status
        END,
            last_heartbeat = NULL, updated_at = ?
        WHERE status IN (?, ?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusUploading, StatusQueued,
		StatusExtracting, StatusUploaded,
		StatusSaving, StatusExtracted,
		now.Format(time.RFC3339Nano),
		StatusUploading,
		StatusExtracting,
		StatusSaving,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}
