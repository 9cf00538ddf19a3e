package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"narthex/internal/services"
	"narthex/internal/testsupport"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Storage.PresignEndpoint = server.URL + "/presign"

	client, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestUploadPresignsThenTransfers(t *testing.T) {
	var putBody []byte
	var putContentType string
	var sawMetaHeader bool

	mux := http.NewServeMux()
	var serverURL string
	mux.HandleFunc("/presign", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST presign, got %s", r.Method)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode presign request: %v", err)
		}
		if req["org_id"] != "org-1" || req["file_type"] != "connect-card" || req["side"] != "front" {
			t.Errorf("unexpected presign scope: %#v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"storage_key": "orgs/org-1/connect-cards/abc.jpg",
			"upload_url":  serverURL + "/put/abc.jpg",
			"expires_in":  300,
			"upload_headers": map[string]string{
				"x-amz-meta-org_id": "org-1",
			},
		})
	})
	mux.HandleFunc("/put/abc.jpg", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		putBody, _ = io.ReadAll(r.Body)
		putContentType = r.Header.Get("Content-Type")
		sawMetaHeader = r.Header.Get("x-amz-meta-org_id") == "org-1"
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	serverURL = server.URL

	cfg := testsupport.NewConfig(t)
	cfg.Storage.PresignEndpoint = server.URL + "/presign"
	client, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	key, err := client.Upload(context.Background(), UploadRequest{
		OrgID:       "org-1",
		Filename:    "card.jpg",
		ContentType: "image/jpeg",
		Data:        []byte{0xFF, 0xD8, 0xFF},
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if key != "orgs/org-1/connect-cards/abc.jpg" {
		t.Fatalf("unexpected storage key: %q", key)
	}
	if len(putBody) != 3 {
		t.Fatalf("expected 3 uploaded bytes, got %d", len(putBody))
	}
	if putContentType != "image/jpeg" {
		t.Fatalf("unexpected content type: %q", putContentType)
	}
	if !sawMetaHeader {
		t.Fatal("expected presign upload headers forwarded on PUT")
	}
}

func TestUploadRejectsNonImages(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("presign service must not be called for invalid input")
	}))

	_, err := client.Upload(context.Background(), UploadRequest{
		OrgID:       "org-1",
		Filename:    "notes.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF"),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("validation failures must not be retryable")
	}
}

func TestUploadRejectsOversizedImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("presign service must not be called for oversized input")
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Storage.PresignEndpoint = server.URL + "/presign"
	cfg.Storage.MaxUploadMiB = 1
	client, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.Upload(context.Background(), UploadRequest{
		OrgID:       "org-1",
		ContentType: "image/jpeg",
		Data:        make([]byte, 2*1024*1024),
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestUploadPresignRejection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bucket unavailable", http.StatusServiceUnavailable)
	}))

	_, err := client.Upload(context.Background(), UploadRequest{
		OrgID:       "org-1",
		ContentType: "image/jpeg",
		Data:        []byte{0xFF, 0xD8},
	})
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service marker, got %v", err)
	}
	if !services.IsRetryable(err) {
		t.Fatal("presign outage must be retryable")
	}
}

func TestUploadPresignAuthFailureNotRetryable(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusForbidden)
	}))

	_, err := client.Upload(context.Background(), UploadRequest{
		OrgID:       "org-1",
		ContentType: "image/jpeg",
		Data:        []byte{0xFF, 0xD8},
	})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("credential failures must not be retryable")
	}
}

func TestUploadTransferRejection(t *testing.T) {
	mux := http.NewServeMux()
	var serverURL string
	mux.HandleFunc("/presign", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"storage_key": "orgs/org-1/connect-cards/x.jpg",
			"upload_url":  serverURL + "/put/x.jpg",
		})
	})
	mux.HandleFunc("/put/x.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "checksum mismatch", http.StatusBadRequest)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	serverURL = server.URL

	cfg := testsupport.NewConfig(t)
	cfg.Storage.PresignEndpoint = server.URL + "/presign"
	client, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.Upload(context.Background(), UploadRequest{
		OrgID:       "org-1",
		ContentType: "image/jpeg",
		Data:        []byte{0xFF, 0xD8},
	})
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service marker, got %v", err)
	}
}

func TestValidateImage(t *testing.T) {
	if err := ValidateImage("image/jpeg; charset=binary", 10, 100); err != nil {
		t.Fatalf("expected parameterized MIME accepted: %v", err)
	}
	if err := ValidateImage("IMAGE/PNG", 10, 100); err != nil {
		t.Fatalf("expected case-insensitive MIME accepted: %v", err)
	}
	if err := ValidateImage("text/html", 10, 100); err == nil {
		t.Fatal("expected non-image rejected")
	}
	if err := ValidateImage("image/jpeg", 0, 100); err == nil {
		t.Fatal("expected empty image rejected")
	}
}
