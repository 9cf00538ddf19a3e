package cards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetBatch fetches a batch by identifier within an organization.
func (s *Store) GetBatch(ctx context.Context, orgID string, id int64) (*Batch, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+batchColumns+` FROM batches WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

// ActiveBatch returns the batch for this location and day if one exists.
// Batches are created lazily by the first save, never here.
func (s *Store) ActiveBatch(ctx context.Context, orgID, locationID, day string) (*Batch, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+batchColumns+` FROM batches WHERE org_id = ? AND location_id = ? AND day = ?`,
		orgID,
		locationID,
		day,
	)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active batch: %w", err)
	}
	return batch, nil
}

// Batches lists an organization's batches, newest day first.
func (s *Store) Batches(ctx context.Context, orgID string) ([]*Batch, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+batchColumns+` FROM batches WHERE org_id = ? ORDER BY day DESC, location_id`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}
