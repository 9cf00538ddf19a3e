package api

import (
	"encoding/json"
	"sort"
	"time"

	"narthex/internal/cards"
	"narthex/internal/queue"
	"narthex/internal/workflow"
)

// FromQueueItem converts a queue item into its transport representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	dto := QueueItem{
		ID:                item.ID,
		OrgID:             item.OrgID,
		LocationID:        item.LocationID,
		SessionID:         item.SessionID,
		SourcePath:        item.SourcePath,
		OriginalFilename:  item.OriginalFilename,
		ContentType:       item.ContentType,
		SizeBytes:         item.SizeBytes,
		Status:            string(item.Status),
		StorageKey:        item.StorageKey,
		Fingerprint:       item.Fingerprint,
		Fields:            rawJSON(item.FieldsJSON),
		Warnings:          rawJSON(item.WarningsJSON),
		CardID:            item.CardID,
		DuplicateOfCardID: item.DuplicateOfCardID,
		FailedStage:       item.FailedStage,
		ErrorMessage:      item.ErrorMessage,
		Attempts:          item.Attempts,
		CreatedAt:         formatTime(item.CreatedAt),
		UpdatedAt:         formatTime(item.UpdatedAt),
	}
	return dto
}

// FromQueueItems converts a slice of queue items.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	converted := make([]QueueItem, 0, len(items))
	for _, item := range items {
		converted = append(converted, FromQueueItem(item))
	}
	return converted
}

// MergeQueueStats normalizes stats so every known status has an entry.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	merged := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		merged[string(status)] = 0
	}
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}

// FromStatusSummary converts workflow diagnostics into the transport form.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:    summary.Running,
		Held:       summary.Held,
		SessionID:  summary.SessionID,
		QueueStats: MergeQueueStats(summary.QueueStats),
		LastError:  summary.LastError,
	}
	if summary.LastItem != nil {
		item := FromQueueItem(summary.LastItem)
		status.LastItem = &item
	}
	names := make([]string, 0, len(summary.StageHealth))
	for name := range summary.StageHealth {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		health := summary.StageHealth[name]
		status.StageHealth = append(status.StageHealth, StageHealth{
			Name:   health.Name,
			Ready:  health.Ready,
			Detail: health.Detail,
		})
	}
	return status
}

// FromCard converts a saved connect card.
func FromCard(card *cards.ConnectCard) Card {
	if card == nil {
		return Card{}
	}
	return Card{
		ID:              card.ID,
		OrgID:           card.OrgID,
		LocationID:      card.LocationID,
		BatchID:         card.BatchID,
		StorageKeyFront: card.StorageKeyFront,
		StorageKeyBack:  card.StorageKeyBack,
		Fields:          rawJSON(card.FieldsJSON),
		Warnings:        rawJSON(card.WarningsJSON),
		PersonName:      card.PersonName,
		Status:          string(card.Status),
		CreatedAt:       formatTime(card.CreatedAt),
		UpdatedAt:       formatTime(card.UpdatedAt),
	}
}

// FromCards converts a slice of connect cards.
func FromCards(list []*cards.ConnectCard) []Card {
	if len(list) == 0 {
		return nil
	}
	converted := make([]Card, 0, len(list))
	for _, card := range list {
		converted = append(converted, FromCard(card))
	}
	return converted
}

// FromBatch converts a batch.
func FromBatch(batch *cards.Batch) Batch {
	if batch == nil {
		return Batch{}
	}
	return Batch{
		ID:         batch.ID,
		OrgID:      batch.OrgID,
		LocationID: batch.LocationID,
		Day:        batch.Day,
		Name:       batch.Name,
		Status:     string(batch.Status),
		CardCount:  batch.CardCount,
		CreatedAt:  formatTime(batch.CreatedAt),
		UpdatedAt:  formatTime(batch.UpdatedAt),
	}
}

// FromBatches converts a slice of batches.
func FromBatches(list []*cards.Batch) []Batch {
	if len(list) == 0 {
		return nil
	}
	converted := make([]Batch, 0, len(list))
	for _, batch := range list {
		converted = append(converted, FromBatch(batch))
	}
	return converted
}

// FromScanToken converts a scan token.
func FromScanToken(token *cards.ScanToken) ScanToken {
	if token == nil {
		return ScanToken{}
	}
	return ScanToken{
		Token:     token.Token,
		OrgID:     token.OrgID,
		ExpiresAt: formatTime(token.ExpiresAt),
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}

// rawJSON passes a stored JSON payload through untouched, dropping anything
// that would corrupt the enclosing document.
func rawJSON(payload string) json.RawMessage {
	if payload == "" {
		return nil
	}
	if !json.Valid([]byte(payload)) {
		return nil
	}
	return json.RawMessage(payload)
}
