package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// runnableStatuses are the stage boundaries a worker may claim from.
var runnableStatuses = []Status{StatusQueued, StatusUploaded, StatusExtracted}

// ClaimNext atomically claims the oldest runnable item in the session and
// moves it into the processing status of its next stage. The single UPDATE
// guarantees no two workers claim the same item. Returns nil when nothing is
// runnable.
func (s *Store) ClaimNext(ctx context.Context, sessionID string) (*Item, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := `UPDATE queue_items
        SET status = CASE status
            WHEN ? THEN ?
            WHEN ? THEN ?
            WHEN ? THEN ?
            ELSE status
        END,
            attempts = attempts + 1, last_heartbeat = ?, updated_at = ?
        WHERE id = (
            SELECT id FROM queue_items
            WHERE status IN (?, ?, ?) AND session_id = ?
            ORDER BY created_at, id LIMIT 1
        )
        RETURNING ` + itemColumns

	var (
		item    *Item
		scanErr error
	)
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			query,
			StatusQueued, StatusUploading,
			StatusUploaded, StatusExtracting,
			StatusExtracted, StatusSaving,
			now,
			now,
			StatusQueued,
			StatusUploaded,
			StatusExtracted,
			sessionID,
		)
		item, scanErr = scanItem(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next item: %w", err)
	}
	return item, nil
}
