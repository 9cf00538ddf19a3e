package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewCaptureParams carries the data needed to enqueue a card image.
type NewCaptureParams struct {
	OrgID            string
	LocationID       string
	SessionID        string
	SourcePath       string
	OriginalFilename string
	ContentType      string
	SizeBytes        int64
}

// NewCapture inserts a queued item for a card image awaiting upload.
func (s *Store) NewCapture(ctx context.Context, params NewCaptureParams) (*Item, error) {
	if params.OrgID == "" {
		return nil, errors.New("org id is required")
	}
	if params.SessionID == "" {
		return nil, errors.New("session id is required")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            org_id, location_id, session_id, source_path, original_filename,
            content_type, size_bytes, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.OrgID,
		params.LocationID,
		params.SessionID,
		nullableString(params.SourcePath),
		nullableString(params.OriginalFilename),
		nullableString(params.ContentType),
		params.SizeBytes,
		StatusQueued,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert capture: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing queue item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items
         SET org_id = ?, location_id = ?, session_id = ?, source_path = ?,
             original_filename = ?, content_type = ?, size_bytes = ?, status = ?,
             storage_key = ?, fingerprint = ?, fields_json = ?, warnings_json = ?,
             card_id = ?, duplicate_of_card_id = ?, failed_stage = ?,
             error_message = ?, attempts = ?, updated_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		item.OrgID,
		item.LocationID,
		item.SessionID,
		nullableString(item.SourcePath),
		nullableString(item.OriginalFilename),
		nullableString(item.ContentType),
		item.SizeBytes,
		item.Status,
		nullableString(item.StorageKey),
		nullableString(item.Fingerprint),
		nullableString(item.FieldsJSON),
		nullableString(item.WarningsJSON),
		nullableInt64(item.CardID),
		nullableInt64(item.DuplicateOfCardID),
		nullableString(item.FailedStage),
		nullableString(item.ErrorMessage),
		item.Attempts,
		item.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(item.LastHeartbeat),
		item.ID,
	); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// List returns queue items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM queue_items`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
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

// ItemsByStatus returns items matching a status ordered by creation time.
func (s *Store) ItemsByStatus(ctx context.Context, status Status) ([]*Item, error) {
	return s.List(ctx, status)
}

// Remove deletes an item by identifier. Items currently claimed by a worker
// are refused; retry after the stage settles.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	if item.IsProcessing() {
		return false, fmt.Errorf("remove item %d: %w", id, ErrItemInFlight)
	}
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM queue_items WHERE id = ? AND status NOT IN (?, ?, ?)`,
		id, StatusUploading, StatusExtracting, StatusSaving,
	)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes completed and duplicate items from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status IN (?, ?)`, StatusCompleted, StatusDuplicate)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed items from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all items from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}
