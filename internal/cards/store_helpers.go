package cards

import (
	"database/sql"
	"errors"
	"time"
)

const batchColumns = "id, org_id, location_id, day, name, status, card_count, created_at, updated_at"

func scanCard(scanner interface{ Scan(dest ...any) error }) (*ConnectCard, error) {
	var (
		id           int64
		orgID        string
		locationID   string
		batchID      int64
		keyFront     string
		keyBack      sql.NullString
		fingerprint  string
		fieldsJSON   sql.NullString
		warningsJSON sql.NullString
		personName   sql.NullString
		personEmail  sql.NullString
		personPhone  sql.NullString
		statusStr    string
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&orgID,
		&locationID,
		&batchID,
		&keyFront,
		&keyBack,
		&fingerprint,
		&fieldsJSON,
		&warningsJSON,
		&personName,
		&personEmail,
		&personPhone,
		&statusStr,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	card := &ConnectCard{
		ID:              id,
		OrgID:           orgID,
		LocationID:      locationID,
		BatchID:         batchID,
		StorageKeyFront: keyFront,
		StorageKeyBack:  keyBack.String,
		Fingerprint:     fingerprint,
		FieldsJSON:      fieldsJSON.String,
		WarningsJSON:    warningsJSON.String,
		PersonName:      personName.String,
		PersonEmail:     personEmail.String,
		PersonPhone:     personPhone.String,
		Status:          CardStatus(statusStr),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		card.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		card.UpdatedAt = updated
	}
	return card, nil
}

func scanBatch(scanner interface{ Scan(dest ...any) error }) (*Batch, error) {
	var (
		id         int64
		orgID      string
		locationID string
		day        string
		name       string
		statusStr  string
		cardCount  int
		createdRaw string
		updatedRaw string
	)

	if err := scanner.Scan(
		&id,
		&orgID,
		&locationID,
		&day,
		&name,
		&statusStr,
		&cardCount,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	batch := &Batch{
		ID:         id,
		OrgID:      orgID,
		LocationID: locationID,
		Day:        day,
		Name:       name,
		Status:     BatchStatus(statusStr),
		CardCount:  cardCount,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		batch.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		batch.UpdatedAt = updated
	}
	return batch, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
