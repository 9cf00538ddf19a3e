package api

import (
	"testing"
	"time"

	"narthex/internal/cards"
	"narthex/internal/queue"
	"narthex/internal/stage"
	"narthex/internal/workflow"
)

func TestFromQueueItemCarriesStoredJSON(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	item := &queue.Item{
		ID:           4,
		OrgID:        "org-1",
		SessionID:    "session-1",
		Status:       queue.StatusExtracted,
		FieldsJSON:   `{"name":"Sarah Smith"}`,
		WarningsJSON: `["Phone number has only 3 digits (expected 10+)"]`,
		Attempts:     2,
		CreatedAt:    created,
	}

	dto := FromQueueItem(item)
	if dto.Status != "extracted" {
		t.Fatalf("Status = %q", dto.Status)
	}
	if string(dto.Fields) != item.FieldsJSON {
		t.Fatalf("Fields = %s", dto.Fields)
	}
	if string(dto.Warnings) != item.WarningsJSON {
		t.Fatalf("Warnings = %s", dto.Warnings)
	}
	if dto.CreatedAt != "2026-03-01T10:30:00.000Z" {
		t.Fatalf("CreatedAt = %q", dto.CreatedAt)
	}
}

func TestFromQueueItemDropsInvalidJSON(t *testing.T) {
	item := &queue.Item{ID: 1, FieldsJSON: "{not json"}
	dto := FromQueueItem(item)
	if dto.Fields != nil {
		t.Fatalf("Fields should be dropped, got %s", dto.Fields)
	}
}

func TestMergeQueueStatsFillsAllStatuses(t *testing.T) {
	merged := MergeQueueStats(map[queue.Status]int{queue.StatusQueued: 3})
	if len(merged) != len(queue.AllStatuses()) {
		t.Fatalf("expected %d entries, got %d", len(queue.AllStatuses()), len(merged))
	}
	if merged["queued"] != 3 {
		t.Fatalf("queued = %d", merged["queued"])
	}
	if merged["completed"] != 0 {
		t.Fatalf("completed = %d", merged["completed"])
	}
}

func TestFromStatusSummaryOrdersStageHealth(t *testing.T) {
	summary := workflow.StatusSummary{
		Running:   true,
		SessionID: "session-1",
		StageHealth: map[string]stage.Health{
			"upload":     stage.Healthy("upload"),
			"extraction": stage.Unhealthy("extraction", "vision service not configured"),
		},
	}
	status := FromStatusSummary(summary)
	if len(status.StageHealth) != 2 {
		t.Fatalf("StageHealth entries = %d", len(status.StageHealth))
	}
	if status.StageHealth[0].Name != "extraction" || status.StageHealth[1].Name != "upload" {
		t.Fatalf("unexpected order: %+v", status.StageHealth)
	}
	if status.StageHealth[0].Ready {
		t.Fatal("extraction should be reported unhealthy")
	}
}

func TestFromBatchAndCard(t *testing.T) {
	batch := &cards.Batch{ID: 2, OrgID: "org-1", Day: "2026-03-01", Status: cards.BatchStatusPending, CardCount: 4}
	if dto := FromBatch(batch); dto.Day != "2026-03-01" || dto.Status != "pending" || dto.CardCount != 4 {
		t.Fatalf("unexpected batch DTO: %+v", dto)
	}
	card := &cards.ConnectCard{ID: 9, OrgID: "org-1", BatchID: 2, Status: cards.CardStatusExtracted, FieldsJSON: `{"name":"A"}`}
	dto := FromCard(card)
	if dto.BatchID != 2 || dto.Status != "extracted" || string(dto.Fields) != `{"name":"A"}` {
		t.Fatalf("unexpected card DTO: %+v", dto)
	}
}
