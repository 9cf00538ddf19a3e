package testsupport

import (
	"context"
	"testing"

	"narthex/internal/cards"
	"narthex/internal/config"
	"narthex/internal/queue"
)

// TestSessionID is the session identifier used for items created by helpers.
const TestSessionID = "test-session"

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenCards opens a cards.Store for tests and registers cleanup.
func MustOpenCards(t testing.TB, cfg *config.Config) *cards.Store {
	t.Helper()

	store, err := cards.Open(cfg)
	if err != nil {
		t.Fatalf("cards.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewCapture enqueues a capture for tests using the provided store.
func NewCapture(t testing.TB, store *queue.Store, filename string) *queue.Item {
	t.Helper()

	item, err := store.NewCapture(context.Background(), queue.NewCaptureParams{
		OrgID:            "test-org",
		LocationID:       "test-location",
		SessionID:        TestSessionID,
		OriginalFilename: filename,
		ContentType:      "image/jpeg",
		SizeBytes:        1024,
	})
	if err != nil {
		t.Fatalf("store.NewCapture: %v", err)
	}
	return item
}
