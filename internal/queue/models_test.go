package queue_test

import (
	"testing"

	"narthex/internal/queue"
)

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus("  Extracting "); !ok || status != queue.StatusExtracting {
		t.Fatalf("expected extracting, got %q ok=%v", status, ok)
	}
	if _, ok := queue.ParseStatus("ripping"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	if _, ok := queue.ParseStatus(""); ok {
		t.Fatal("expected empty status to be rejected")
	}
}

func TestResumeStatusMatchesProducedData(t *testing.T) {
	item := queue.Item{}
	if got := item.ResumeStatus(); got != queue.StatusQueued {
		t.Fatalf("expected queued, got %s", got)
	}
	item.StorageKey = "orgs/org/cards/a.jpg"
	if got := item.ResumeStatus(); got != queue.StatusUploaded {
		t.Fatalf("expected uploaded, got %s", got)
	}
	item.Fingerprint = "abc"
	item.FieldsJSON = `{"name":"Dana"}`
	if got := item.ResumeStatus(); got != queue.StatusExtracted {
		t.Fatalf("expected extracted, got %s", got)
	}
}

func TestSetFailedClearsHeartbeat(t *testing.T) {
	item := queue.Item{Status: queue.StatusExtracting}
	item.SetFailed("extraction", "vision timeout")
	if item.Status != queue.StatusFailed || item.FailedStage != "extraction" {
		t.Fatalf("unexpected failure state: %#v", item)
	}
	if item.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared")
	}
	if !item.IsTerminal() {
		t.Fatal("failed must be terminal")
	}
}
