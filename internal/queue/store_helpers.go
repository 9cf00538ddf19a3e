package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, org_id, location_id, session_id, source_path, original_filename, content_type, size_bytes, status, storage_key, fingerprint, fields_json, warnings_json, card_id, duplicate_of_card_id, failed_stage, error_message, attempts, created_at, updated_at, last_heartbeat"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		orgID            string
		locationID       string
		sessionID        string
		sourcePath       sql.NullString
		originalFilename sql.NullString
		contentType      sql.NullString
		sizeBytes        sql.NullInt64
		statusStr        string
		storageKey       sql.NullString
		fingerprint      sql.NullString
		fieldsJSON       sql.NullString
		warningsJSON     sql.NullString
		cardID           sql.NullInt64
		duplicateCardID  sql.NullInt64
		failedStage      sql.NullString
		errorMessage     sql.NullString
		attempts         sql.NullInt64
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&orgID,
		&locationID,
		&sessionID,
		&sourcePath,
		&originalFilename,
		&contentType,
		&sizeBytes,
		&statusStr,
		&storageKey,
		&fingerprint,
		&fieldsJSON,
		&warningsJSON,
		&cardID,
		&duplicateCardID,
		&failedStage,
		&errorMessage,
		&attempts,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:                id,
		OrgID:             orgID,
		LocationID:        locationID,
		SessionID:         sessionID,
		SourcePath:        sourcePath.String,
		OriginalFilename:  originalFilename.String,
		ContentType:       contentType.String,
		SizeBytes:         sizeBytes.Int64,
		Status:            Status(statusStr),
		StorageKey:        storageKey.String,
		Fingerprint:       fingerprint.String,
		FieldsJSON:        fieldsJSON.String,
		WarningsJSON:      warningsJSON.String,
		CardID:            cardID.Int64,
		DuplicateOfCardID: duplicateCardID.Int64,
		FailedStage:       failedStage.String,
		ErrorMessage:      errorMessage.String,
		Attempts:          int(attempts.Int64),
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
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

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
