package cards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const cardColumns = "id, org_id, location_id, batch_id, storage_key_front, storage_key_back, fingerprint, fields_json, warnings_json, person_name, person_email, person_phone, status, created_at, updated_at"

// ErrCardNotFound reports a card id that does not exist in the caller's org.
var ErrCardNotFound = errors.New("card not found")

// SaveCardParams carries everything the persistence stage knows about a card.
type SaveCardParams struct {
	OrgID           string
	LocationID      string
	Day             string
	StorageKeyFront string
	StorageKeyBack  string
	Fingerprint     string
	FieldsJSON      string
	WarningsJSON    string
	PersonName      string
	PersonEmail     string
	PersonPhone     string
	// DuplicatePersonWindow bounds how far back the returning-visitor
	// heuristic looks. Zero disables the check.
	DuplicatePersonWindow time.Duration
}

// SaveCard persists a card inside a transaction: the day's batch is created
// or reused, the card is inserted, and the batch counter is bumped. The
// unique fingerprint index turns a concurrent double-save into a clean
// duplicate-image outcome. A matching recent person does not block the save;
// it only changes the outcome so review can merge.
func (s *Store) SaveCard(ctx context.Context, params SaveCardParams) (SaveResult, error) {
	if params.OrgID == "" {
		return SaveResult{}, errors.New("org id is required")
	}
	if params.Fingerprint == "" {
		return SaveResult{}, errors.New("fingerprint is required")
	}
	if params.StorageKeyFront == "" {
		return SaveResult{}, errors.New("front storage key is required")
	}
	if params.Day == "" {
		params.Day = time.Now().UTC().Format("2006-01-02")
	}

	// Cheap pre-check outside the transaction. The index remains the
	// authority if two saves race.
	if existing, err := s.FindByFingerprint(ctx, params.OrgID, params.Fingerprint); err != nil {
		return SaveResult{}, err
	} else if existing != nil {
		return SaveResult{Outcome: OutcomeDuplicateImage, Existing: existing}, nil
	}

	var priorPerson *ConnectCard
	if params.DuplicatePersonWindow > 0 && params.PersonName != "" {
		match, err := s.FindRecentPerson(ctx, params.OrgID, params.PersonName, params.PersonEmail, params.PersonPhone, params.DuplicatePersonWindow)
		if err != nil {
			return SaveResult{}, err
		}
		priorPerson = match
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	var result SaveResult
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin save tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		batch, err := upsertBatch(ctx, tx, params, timestamp)
		if err != nil {
			return err
		}

		row := tx.QueryRowContext(
			ctx,
			`INSERT INTO connect_cards (
                org_id, location_id, batch_id, storage_key_front, storage_key_back,
                fingerprint, fields_json, warnings_json,
                person_name, person_email, person_phone,
                status, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            RETURNING `+cardColumns,
			params.OrgID,
			params.LocationID,
			batch.ID,
			params.StorageKeyFront,
			nullableString(params.StorageKeyBack),
			params.Fingerprint,
			nullableString(params.FieldsJSON),
			nullableString(params.WarningsJSON),
			nullableString(NormalizePersonName(params.PersonName)),
			nullableString(NormalizeEmail(params.PersonEmail)),
			nullableString(NormalizePhone(params.PersonPhone)),
			CardStatusExtracted,
			timestamp,
			timestamp,
		)
		card, err := scanCard(row)
		if err != nil {
			return fmt.Errorf("insert card: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE batches SET card_count = card_count + 1, status = ?, updated_at = ? WHERE id = ?`,
			BatchStatusPending,
			timestamp,
			batch.ID,
		); err != nil {
			return fmt.Errorf("bump batch count: %w", err)
		}
		batch.CardCount++
		batch.Status = BatchStatusPending

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit save: %w", err)
		}

		result = SaveResult{Outcome: OutcomeSaved, Card: card, Batch: batch}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			existing, findErr := s.FindByFingerprint(ctx, params.OrgID, params.Fingerprint)
			if findErr != nil {
				return SaveResult{}, findErr
			}
			if existing == nil {
				// The conflicting card was deleted between the failed
				// insert and this lookup. The caller retries against the
				// fresh state.
				return SaveResult{}, fmt.Errorf("save card: fingerprint conflict but no card found for %s", params.Fingerprint)
			}
			return SaveResult{Outcome: OutcomeDuplicateImage, Existing: existing}, nil
		}
		return SaveResult{}, err
	}

	if priorPerson != nil {
		result.Outcome = OutcomeDuplicatePerson
		result.Existing = priorPerson
	}
	return result, nil
}

func upsertBatch(ctx context.Context, tx *sql.Tx, params SaveCardParams, timestamp string) (*Batch, error) {
	name := fmt.Sprintf("%s %s", params.LocationID, params.Day)
	row := tx.QueryRowContext(
		ctx,
		`INSERT INTO batches (org_id, location_id, day, name, status, card_count, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, 0, ?, ?)
         ON CONFLICT (org_id, location_id, day) DO UPDATE SET updated_at = excluded.updated_at
         RETURNING `+batchColumns,
		params.OrgID,
		params.LocationID,
		params.Day,
		name,
		BatchStatusPending,
		timestamp,
		timestamp,
	)
	batch, err := scanBatch(row)
	if err != nil {
		return nil, fmt.Errorf("upsert batch: %w", err)
	}
	return batch, nil
}

// FindByFingerprint returns the card with this exact image content in the
// organization, or nil.
func (s *Store) FindByFingerprint(ctx context.Context, orgID, fingerprint string) (*ConnectCard, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+cardColumns+` FROM connect_cards WHERE org_id = ? AND fingerprint = ? LIMIT 1`,
		orgID,
		fingerprint,
	)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return card, nil
}

// FindRecentPerson looks for a card saved within the window whose normalized
// name matches and that shares an email or phone. Name alone is not enough;
// two different Sarah Smiths can visit the same week.
func (s *Store) FindRecentPerson(ctx context.Context, orgID, name, email, phone string, window time.Duration) (*ConnectCard, error) {
	normName := NormalizePersonName(name)
	if normName == "" {
		return nil, nil
	}
	normEmail := NormalizeEmail(email)
	normPhone := NormalizePhone(phone)
	if normEmail == "" && normPhone == "" {
		return nil, nil
	}

	cutoff := time.Now().UTC().Add(-window).Format(time.RFC3339Nano)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+cardColumns+` FROM connect_cards
         WHERE org_id = ? AND person_name = ? AND created_at >= ?
           AND ((person_email IS NOT NULL AND person_email = ?)
             OR (person_phone IS NOT NULL AND person_phone = ?))
         ORDER BY created_at DESC LIMIT 1`,
		orgID,
		normName,
		cutoff,
		nullableString(normEmail),
		nullableString(normPhone),
	)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recent person: %w", err)
	}
	return card, nil
}

// GetCard fetches a card by identifier within an organization.
func (s *Store) GetCard(ctx context.Context, orgID string, id int64) (*ConnectCard, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+cardColumns+` FROM connect_cards WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	return card, nil
}

// MarkReviewed transitions a card to reviewed and completes its batch when
// every member card is reviewed.
func (s *Store) MarkReviewed(ctx context.Context, orgID string, cardID int64) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin review tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var batchID int64
		err = tx.QueryRowContext(
			ctx,
			`UPDATE connect_cards SET status = ?, updated_at = ?
             WHERE org_id = ? AND id = ? RETURNING batch_id`,
			CardStatusReviewed,
			timestamp,
			orgID,
			cardID,
		).Scan(&batchID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("card %d in org %s: %w", cardID, orgID, ErrCardNotFound)
		}
		if err != nil {
			return fmt.Errorf("mark reviewed: %w", err)
		}

		// Batch completes only when no member card remains un-reviewed.
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE batches SET status = CASE
                WHEN NOT EXISTS (
                    SELECT 1 FROM connect_cards WHERE batch_id = batches.id AND status != ?
                ) THEN ?
                ELSE ?
            END, updated_at = ?
            WHERE id = ?`,
			CardStatusReviewed,
			BatchStatusCompleted,
			BatchStatusPending,
			timestamp,
			batchID,
		); err != nil {
			return fmt.Errorf("refresh batch status: %w", err)
		}

		return tx.Commit()
	})
}

// DeleteCard removes a discarded card and shrinks its batch counter.
func (s *Store) DeleteCard(ctx context.Context, orgID string, cardID int64) (bool, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	deleted := false
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin delete tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var batchID int64
		err = tx.QueryRowContext(
			ctx,
			`DELETE FROM connect_cards WHERE org_id = ? AND id = ? RETURNING batch_id`,
			orgID,
			cardID,
		).Scan(&batchID)
		if errors.Is(err, sql.ErrNoRows) {
			deleted = false
			return tx.Commit()
		}
		if err != nil {
			return fmt.Errorf("delete card: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE batches SET card_count = MAX(card_count - 1, 0), updated_at = ? WHERE id = ?`,
			timestamp,
			batchID,
		); err != nil {
			return fmt.Errorf("shrink batch count: %w", err)
		}

		deleted = true
		return tx.Commit()
	})
	return deleted, err
}

// CardsByBatch returns the cards in a batch ordered by creation.
func (s *Store) CardsByBatch(ctx context.Context, orgID string, batchID int64) ([]*ConnectCard, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+cardColumns+` FROM connect_cards WHERE org_id = ? AND batch_id = ? ORDER BY created_at, id`,
		orgID,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("cards by batch: %w", err)
	}
	defer rows.Close()

	var cardsOut []*ConnectCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cardsOut = append(cardsOut, card)
	}
	return cardsOut, rows.Err()
}
