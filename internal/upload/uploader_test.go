package upload

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"narthex/internal/logging"
	"narthex/internal/services"
	"narthex/internal/storage"
	"narthex/internal/testsupport"
)

type fakeUploader struct {
	key        string
	err        error
	configured bool
	requests   []storage.UploadRequest
}

func (f *fakeUploader) Upload(ctx context.Context, req storage.UploadRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.key, nil
}

func (f *fakeUploader) Configured() bool { return f.configured }

func TestUploaderStoresKeyOnItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")
	item.SourcePath = filepath.Join(cfg.Paths.IncomingDir, "card.jpg")
	testsupport.WriteFile(t, item.SourcePath, 2048)

	fake := &fakeUploader{key: "orgs/test-org/cards/abc.jpg", configured: true}
	handler := NewUploaderWithClient(cfg, store, logging.NewNop(), fake)

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.StorageKey != fake.key {
		t.Fatalf("StorageKey = %q, want %q", item.StorageKey, fake.key)
	}
	if item.SizeBytes != 2048 {
		t.Fatalf("SizeBytes = %d, want 2048", item.SizeBytes)
	}
	if len(fake.requests) != 1 {
		t.Fatalf("expected one upload request, got %d", len(fake.requests))
	}
	req := fake.requests[0]
	if req.OrgID != "test-org" || req.Filename != "card.jpg" || req.Side != storage.SideFront {
		t.Fatalf("unexpected upload request: %+v", req)
	}
	if len(req.Data) != 2048 {
		t.Fatalf("uploaded %d bytes, want 2048", len(req.Data))
	}
}

func TestUploaderSkipsWhenKeyAlreadySet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")
	item.StorageKey = "orgs/test-org/cards/existing.jpg"

	fake := &fakeUploader{key: "should-not-be-used", configured: true}
	handler := NewUploaderWithClient(cfg, store, logging.NewNop(), fake)

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.StorageKey != "orgs/test-org/cards/existing.jpg" {
		t.Fatalf("StorageKey changed to %q", item.StorageKey)
	}
	if len(fake.requests) != 0 {
		t.Fatalf("expected no upload requests, got %d", len(fake.requests))
	}
}

func TestUploaderMissingSourceIsValidationError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")
	item.SourcePath = filepath.Join(cfg.Paths.IncomingDir, "missing.jpg")

	handler := NewUploaderWithClient(cfg, store, logging.NewNop(), &fakeUploader{configured: true})

	err := handler.Prepare(context.Background(), item)
	if err == nil {
		t.Fatal("expected error for missing source file")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("missing source should not be retryable")
	}
}

func TestUploaderUnconfiguredClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")
	item.SourcePath = filepath.Join(cfg.Paths.IncomingDir, "card.jpg")
	testsupport.WriteFile(t, item.SourcePath, 64)

	handler := NewUploaderWithClient(cfg, store, logging.NewNop(), nil)

	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	health := handler.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy stage without a storage client")
	}
	if !strings.Contains(health.Detail, "not configured") {
		t.Fatalf("unexpected health detail %q", health.Detail)
	}
}

func TestUploaderPropagatesUploadFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")
	item.SourcePath = filepath.Join(cfg.Paths.IncomingDir, "card.jpg")
	testsupport.WriteFile(t, item.SourcePath, 64)

	wrapped := services.Wrap(services.ErrExternalService, "storage", "put", "Storage rejected the upload", nil)
	fake := &fakeUploader{err: wrapped, configured: true}
	handler := NewUploaderWithClient(cfg, store, logging.NewNop(), fake)

	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if item.StorageKey != "" {
		t.Fatalf("StorageKey should stay empty on failure, got %q", item.StorageKey)
	}
}

func TestDetectContentType(t *testing.T) {
	if got := detectContentType("card.png", nil); got != "image/png" {
		t.Fatalf("detectContentType(card.png) = %q", got)
	}
	// JPEG magic bytes with no usable extension.
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 16)...)
	if got := detectContentType("card", jpeg); got != "image/jpeg" {
		t.Fatalf("detectContentType(jpeg bytes) = %q", got)
	}
}
