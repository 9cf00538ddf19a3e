package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"narthex/internal/config"
	"narthex/internal/logging"
	"narthex/internal/services"
)

// CardSide identifies which face of a card an image captures.
type CardSide string

const (
	SideFront CardSide = "front"
	SideBack  CardSide = "back"
)

// UploadRequest carries one card image to durable storage.
type UploadRequest struct {
	OrgID       string
	Filename    string
	ContentType string
	Side        CardSide
	Data        []byte
}

type presignRequest struct {
	OrgID       string `json:"org_id"`
	FileType    string `json:"file_type"`
	Side        string `json:"side"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type presignResponse struct {
	StorageKey    string            `json:"storage_key"`
	UploadURL     string            `json:"upload_url"`
	ExpiresIn     int               `json:"expires_in"`
	UploadHeaders map[string]string `json:"upload_headers"`
}

// Client talks to the presign service and performs the resulting PUT.
type Client struct {
	endpoint   string
	apiKey     string
	maxBytes   int64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a storage client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Storage.PresignEndpoint) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "new client",
			"Presign endpoint is not configured", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		endpoint:   cfg.Storage.PresignEndpoint,
		apiKey:     cfg.Storage.APIKey,
		maxBytes:   int64(cfg.Storage.MaxUploadMiB) * 1024 * 1024,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Storage.TimeoutSeconds) * time.Second},
		logger:     logger.With(logging.String(logging.FieldComponent, "storage")),
	}, nil
}

// Upload validates the image, obtains a presigned URL scoped to the tenant,
// transfers the bytes, and returns the storage key.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (string, error) {
	if req.OrgID == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "upload",
			"Organization is required for upload", nil)
	}
	if err := ValidateImage(req.ContentType, int64(len(req.Data)), c.maxBytes); err != nil {
		return "", err
	}
	side := req.Side
	if side == "" {
		side = SideFront
	}

	grant, err := c.presign(ctx, presignRequest{
		OrgID:       req.OrgID,
		FileType:    "connect-card",
		Side:        string(side),
		Filename:    req.Filename,
		ContentType: req.ContentType,
		SizeBytes:   int64(len(req.Data)),
	})
	if err != nil {
		return "", err
	}

	if err := c.put(ctx, grant, req); err != nil {
		return "", err
	}

	c.logger.Info("card image uploaded",
		logging.String(logging.FieldOrgID, req.OrgID),
		logging.String("storage_key", grant.StorageKey),
		logging.Int("size_bytes", len(req.Data)))
	return grant.StorageKey, nil
}

func (c *Client) presign(ctx context.Context, req presignRequest) (presignResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return presignResponse{}, fmt.Errorf("marshal presign request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return presignResponse{}, fmt.Errorf("create presign request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return presignResponse{}, wrapTransportError("request upload url", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		marker := services.ErrExternalService
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			marker = services.ErrConfiguration
		}
		return presignResponse{}, services.Wrap(marker, "storage", "request upload url",
			fmt.Sprintf("Presign service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var grant presignResponse
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return presignResponse{}, services.Wrap(services.ErrExternalService, "storage", "request upload url",
			"Presign service returned an unreadable response", err)
	}
	if grant.UploadURL == "" || grant.StorageKey == "" {
		return presignResponse{}, services.Wrap(services.ErrExternalService, "storage", "request upload url",
			"Presign service response is missing the upload URL or storage key", nil)
	}
	return grant, nil
}

func (c *Client) put(ctx context.Context, grant presignResponse, req UploadRequest) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.UploadURL, bytes.NewReader(req.Data))
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", req.ContentType)
	for key, value := range grant.UploadHeaders {
		httpReq.Header.Set(key, value)
	}
	httpReq.ContentLength = int64(len(req.Data))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return wrapTransportError("transfer image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return services.Wrap(services.ErrExternalService, "storage", "transfer image",
			fmt.Sprintf("Storage rejected the upload with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	return nil
}

// Configured reports whether the client has an endpoint to talk to. Used by
// stage health checks.
func (c *Client) Configured() bool {
	return c != nil && c.endpoint != ""
}

func wrapTransportError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "storage", operation,
			"Storage service did not respond in time", err)
	}
	return services.Wrap(services.ErrExternalService, "storage", operation,
		"Storage service request failed", err)
}
