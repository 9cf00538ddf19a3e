package queue

import (
	"context"
	"fmt"
	"time"
)

// PendingSessionItems returns unsettled items left behind by earlier
// sessions. The workflow manager holds these out of worker reach until the
// operator resumes or discards them.
func (s *Store) PendingSessionItems(ctx context.Context, currentSessionID string) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items
         WHERE session_id != ? AND status NOT IN (?, ?, ?)
         ORDER BY created_at, id`,
		currentSessionID,
		StatusCompleted,
		StatusFailed,
		StatusDuplicate,
	)
	if err != nil {
		return nil, fmt.Errorf("pending session items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ResumeSession adopts every item from earlier sessions into the current
// one. Items caught mid-stage roll back to the start of that stage so no
// partial work is trusted.
func (s *Store) ResumeSession(ctx context.Context, currentSessionID string) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
        SET session_id = ?,
            status = CASE status
                WHEN ? THEN ?
                WHEN ? THEN ?
                WHEN ? THEN ?
                ELSE status
            END,
            last_heartbeat = NULL, updated_at = ?
        WHERE session_id != ?`,
		currentSessionID,
		StatusUploading, StatusQueued,
		StatusExtracting, StatusUploaded,
		StatusSaving, StatusExtracted,
		time.Now().UTC().Format(time.RFC3339Nano),
		currentSessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("resume session: %w", err)
	}
	return res.RowsAffected()
}

// DiscardSession deletes every item left behind by earlier sessions,
// settled or not. The cards store is untouched; anything already saved
// stays saved.
func (s *Store) DiscardSession(ctx context.Context, currentSessionID string) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM queue_items WHERE session_id != ?`,
		currentSessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("discard session: %w", err)
	}
	return res.RowsAffected()
}

// SessionItems returns every item belonging to the session.
func (s *Store) SessionItems(ctx context.Context, sessionID string) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE session_id = ? ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("session items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SessionSettled reports whether the session has items and all of them have
// reached a terminal status.
func (s *Store) SessionSettled(ctx context.Context, sessionID string) (bool, error) {
	var total, settled int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1),
                COALESCE(SUM(CASE WHEN status IN (?, ?, ?) THEN 1 ELSE 0 END), 0)
         FROM queue_items WHERE session_id = ?`,
		StatusCompleted,
		StatusFailed,
		StatusDuplicate,
		sessionID,
	).Scan(&total, &settled)
	if err != nil {
		return false, fmt.Errorf("session settled: %w", err)
	}
	return total > 0 && total == settled, nil
}
