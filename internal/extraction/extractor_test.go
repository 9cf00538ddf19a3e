package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"narthex/internal/cards"
	"narthex/internal/logging"
	"narthex/internal/queue"
	"narthex/internal/services"
	"narthex/internal/testsupport"
	"narthex/internal/vision"
)

type fakeExtractor struct {
	fields     vision.Fields
	rawText    string
	err        error
	configured bool
	calls      int
}

func (f *fakeExtractor) ExtractCard(ctx context.Context, imageData []byte, mimeType string) (vision.Fields, string, error) {
	f.calls++
	if f.err != nil {
		return vision.Fields{}, "", f.err
	}
	return f.fields, f.rawText, nil
}

func (f *fakeExtractor) Configured() bool { return f.configured }

type fakeFinder struct {
	card *cards.ConnectCard
	err  error
}

func (f *fakeFinder) FindByFingerprint(ctx context.Context, orgID, fingerprint string) (*cards.ConnectCard, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.card, nil
}

func strPtr(value string) *string { return &value }

func TestExtractorRecordsFieldsAndWarnings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")
	item.SourcePath = filepath.Join(cfg.Paths.IncomingDir, "card.jpg")
	item.StorageKey = "orgs/test-org/cards/card.jpg"
	testsupport.WriteFile(t, item.SourcePath, 512)

	fake := &fakeExtractor{
		fields:     vision.Fields{Name: strPtr("Sarah Smith"), Phone: strPtr("555")},
		rawText:    `{"name":"Sarah Smith","phone":"555"}`,
		configured: true,
	}
	handler := NewExtractorWithDependencies(cfg, store, logging.NewNop(), fake, &fakeFinder{})

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Fingerprint == "" {
		t.Fatal("expected fingerprint to be recorded")
	}
	if !strings.Contains(item.FieldsJSON, "Sarah Smith") {
		t.Fatalf("FieldsJSON = %q", item.FieldsJSON)
	}
	if !strings.Contains(item.WarningsJSON, "Phone number") {
		t.Fatalf("WarningsJSON = %q, expected a phone warning", item.WarningsJSON)
	}
	if fake.calls != 1 {
		t.Fatalf("vision called %d times, want 1", fake.calls)
	}
}

func TestExtractorFingerprintIsContentHash(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")
	item.SourcePath = filepath.Join(cfg.Paths.IncomingDir, "card.jpg")
	item.StorageKey = "orgs/test-org/cards/card.jpg"
	testsupport.WriteFile(t, item.SourcePath, 100)

	handler := NewExtractorWithDependencies(cfg, store, logging.NewNop(), &fakeExtractor{configured: true}, &fakeFinder{})
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	content := make([]byte, 100)
	for i := range content {
		content[i] = 0x42
	}
	sum := sha256.Sum256(content)
	if want := hex.EncodeToString(sum[:]); item.Fingerprint != want {
		t.Fatalf("Fingerprint = %q, want %q", item.Fingerprint, want)
	}
}

func TestExtractorMarksDuplicateBeforeVisionCall(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")
	item.SourcePath = filepath.Join(cfg.Paths.IncomingDir, "card.jpg")
	item.StorageKey = "orgs/test-org/cards/card.jpg"
	testsupport.WriteFile(t, item.SourcePath, 512)

	fake := &fakeExtractor{configured: true}
	finder := &fakeFinder{card: &cards.ConnectCard{ID: 42, OrgID: "test-org"}}
	handler := NewExtractorWithDependencies(cfg, store, logging.NewNop(), fake, finder)

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Status != queue.StatusDuplicate {
		t.Fatalf("Status = %s, want %s", item.Status, queue.StatusDuplicate)
	}
	if item.DuplicateOfCardID != 42 {
		t.Fatalf("DuplicateOfCardID = %d, want 42", item.DuplicateOfCardID)
	}
	if fake.calls != 0 {
		t.Fatalf("vision called %d times for a duplicate, want 0", fake.calls)
	}
}

func TestExtractorSkipsVisionWhenFieldsPresent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")
	item.SourcePath = filepath.Join(cfg.Paths.IncomingDir, "card.jpg")
	item.StorageKey = "orgs/test-org/cards/card.jpg"
	item.FieldsJSON = `{"name":"Already Extracted"}`
	testsupport.WriteFile(t, item.SourcePath, 512)

	fake := &fakeExtractor{configured: true}
	handler := NewExtractorWithDependencies(cfg, store, logging.NewNop(), fake, &fakeFinder{})

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("vision called %d times despite existing fields, want 0", fake.calls)
	}
	if item.FieldsJSON != `{"name":"Already Extracted"}` {
		t.Fatalf("FieldsJSON changed to %q", item.FieldsJSON)
	}
}

func TestExtractorRequiresUploadFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")

	handler := NewExtractorWithDependencies(cfg, store, logging.NewNop(), &fakeExtractor{configured: true}, &fakeFinder{})
	err := handler.Prepare(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExtractorDuplicateScreenFailureIsRetryable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")
	item.SourcePath = filepath.Join(cfg.Paths.IncomingDir, "card.jpg")
	item.StorageKey = "orgs/test-org/cards/card.jpg"
	testsupport.WriteFile(t, item.SourcePath, 512)

	finder := &fakeFinder{err: errors.New("database is locked")}
	handler := NewExtractorWithDependencies(cfg, store, logging.NewNop(), &fakeExtractor{configured: true}, finder)

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error from duplicate screening")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("duplicate screen failure should be retryable, got %v", err)
	}
}

func TestExtractorUnconfiguredVision(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")
	item.SourcePath = filepath.Join(cfg.Paths.IncomingDir, "card.jpg")
	item.StorageKey = "orgs/test-org/cards/card.jpg"
	testsupport.WriteFile(t, item.SourcePath, 512)

	handler := NewExtractorWithDependencies(cfg, store, logging.NewNop(), nil, &fakeFinder{})
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	if health := handler.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy stage without a vision client")
	}
}
