package persist

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"narthex/internal/cards"
	"narthex/internal/logging"
	"narthex/internal/queue"
	"narthex/internal/services"
	"narthex/internal/testsupport"
)

type fakeWriter struct {
	result cards.SaveResult
	err    error
	params []cards.SaveCardParams
}

func (f *fakeWriter) SaveCard(ctx context.Context, params cards.SaveCardParams) (cards.SaveResult, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return cards.SaveResult{}, f.err
	}
	return f.result, nil
}

func extractedCapture(t *testing.T, store *queue.Store) *queue.Item {
	t.Helper()
	item := testsupport.NewCapture(t, store, "card.jpg")
	item.StorageKey = "orgs/test-org/cards/card.jpg"
	item.Fingerprint = "fp-" + item.OriginalFilename
	item.FieldsJSON = `{"name":"Sarah Smith","email":"sarah@example.com","phone":"206-555-0100"}`
	return item
}

func TestSaverRecordsCardAndBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := extractedCapture(t, store)

	writer := &fakeWriter{result: cards.SaveResult{
		Outcome: cards.OutcomeSaved,
		Card:    &cards.ConnectCard{ID: 7},
		Batch:   &cards.Batch{ID: 3, Day: item.CreatedAt.Format("2006-01-02")},
	}}
	handler := NewSaverWithWriter(cfg, store, logging.NewNop(), writer)

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.CardID != 7 {
		t.Fatalf("CardID = %d, want 7", item.CardID)
	}
	if len(writer.params) != 1 {
		t.Fatalf("SaveCard called %d times, want 1", len(writer.params))
	}
	params := writer.params[0]
	if params.PersonName != "Sarah Smith" || params.PersonEmail != "sarah@example.com" || params.PersonPhone != "206-555-0100" {
		t.Fatalf("unexpected person fields: %+v", params)
	}
	if params.Day != item.CreatedAt.Format("2006-01-02") {
		t.Fatalf("Day = %q, want capture day", params.Day)
	}
	if params.DuplicatePersonWindow != time.Duration(cfg.Workflow.DuplicatePersonWindowDays)*24*time.Hour {
		t.Fatalf("DuplicatePersonWindow = %v", params.DuplicatePersonWindow)
	}
}

func TestSaverMarksDuplicateImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := extractedCapture(t, store)

	writer := &fakeWriter{result: cards.SaveResult{
		Outcome:  cards.OutcomeDuplicateImage,
		Existing: &cards.ConnectCard{ID: 11},
	}}
	handler := NewSaverWithWriter(cfg, store, logging.NewNop(), writer)

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Status != queue.StatusDuplicate {
		t.Fatalf("Status = %s, want %s", item.Status, queue.StatusDuplicate)
	}
	if item.DuplicateOfCardID != 11 {
		t.Fatalf("DuplicateOfCardID = %d, want 11", item.DuplicateOfCardID)
	}
	if item.CardID != 0 {
		t.Fatalf("CardID = %d, want 0 for a duplicate image", item.CardID)
	}
}

func TestSaverRetriesDuplicateWithoutCard(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := extractedCapture(t, store)

	// A concurrent delete can leave the duplicate outcome with no card to
	// point at.
	writer := &fakeWriter{result: cards.SaveResult{Outcome: cards.OutcomeDuplicateImage}}
	handler := NewSaverWithWriter(cfg, store, logging.NewNop(), writer)

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected an error when the duplicate card is missing")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("missing duplicate card should be retryable, got %v", err)
	}
	if item.Status == queue.StatusDuplicate {
		t.Fatal("item must not be marked duplicate without a card reference")
	}
}

func TestSaverNotesReturningVisitor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := extractedCapture(t, store)
	item.WarningsJSON = `["Phone number has only 3 digits (expected 10+)"]`

	writer := &fakeWriter{result: cards.SaveResult{
		Outcome:  cards.OutcomeDuplicatePerson,
		Card:     &cards.ConnectCard{ID: 8},
		Batch:    &cards.Batch{ID: 3},
		Existing: &cards.ConnectCard{ID: 2},
	}}
	handler := NewSaverWithWriter(cfg, store, logging.NewNop(), writer)

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.CardID != 8 {
		t.Fatalf("CardID = %d, want 8", item.CardID)
	}
	if !strings.Contains(item.WarningsJSON, "matches card 2") {
		t.Fatalf("WarningsJSON = %q, expected a returning-visitor note", item.WarningsJSON)
	}
	if !strings.Contains(item.WarningsJSON, "Phone number") {
		t.Fatalf("WarningsJSON = %q, earlier warnings should survive", item.WarningsJSON)
	}
}

func TestSaverRequiresExtractionFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")

	handler := NewSaverWithWriter(cfg, store, logging.NewNop(), &fakeWriter{})
	err := handler.Prepare(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaverSaveFailureIsRetryable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := extractedCapture(t, store)

	writer := &fakeWriter{err: errors.New("database is locked")}
	handler := NewSaverWithWriter(cfg, store, logging.NewNop(), writer)

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected save failure")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("save failure should be retryable, got %v", err)
	}
}

func TestSaverAgainstRealCardsStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	cardStore := testsupport.MustOpenCards(t, cfg)
	item := extractedCapture(t, store)

	handler := NewSaver(cfg, store, cardStore, logging.NewNop())

	ctx := context.Background()
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.CardID == 0 {
		t.Fatal("expected a card id from the real store")
	}

	saved, err := cardStore.GetCard(ctx, item.OrgID, item.CardID)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if saved.PersonName == "" {
		t.Fatal("expected the person name to be denormalized onto the card")
	}

	// The same image saved twice settles as a duplicate.
	second := extractedCapture(t, store)
	second.Fingerprint = item.Fingerprint
	if err := handler.Execute(ctx, second); err != nil {
		t.Fatalf("Execute second: %v", err)
	}
	if second.Status != queue.StatusDuplicate {
		t.Fatalf("second Status = %s, want %s", second.Status, queue.StatusDuplicate)
	}
	if second.DuplicateOfCardID != item.CardID {
		t.Fatalf("DuplicateOfCardID = %d, want %d", second.DuplicateOfCardID, item.CardID)
	}
}
