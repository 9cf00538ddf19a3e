package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"

	"narthex/internal/config"
	"narthex/internal/logging"
	"narthex/internal/services"
)

const extractionPrompt = `This is a photo of a church connect card filled out by a visitor.
Extract the handwritten and printed information into JSON with exactly these keys:
name, email, phone, address, prayer_request, first_time_visitor, age_group, family_info, additional_notes, interests.
Rules:
- interests is an array of strings (ministries or activities the person checked or wrote); all other values are strings except first_time_visitor, which is a boolean.
- Use null for anything absent or illegible. Do not guess.
- Transcribe exactly what is written; do not correct spelling of names.
Respond with only the JSON object, no other text.`

const (
	extractRetryAttempts = 3
	extractRetryBackoff  = 2 * time.Second
)

// Client calls the Anthropic Messages API to read connect cards.
type Client struct {
	api       *anthropic.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

// New constructs a Client from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Vision.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "vision", "new client",
			"Anthropic API key is not configured", nil)
	}
	var opts []anthropic.ClientOption
	if cfg.Vision.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.Vision.BaseURL))
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		api:       anthropic.NewClient(cfg.Vision.APIKey, opts...),
		model:     cfg.Vision.Model,
		maxTokens: cfg.Vision.MaxTokens,
		logger:    logger.With(logging.String(logging.FieldComponent, "vision")),
	}, nil
}

// ExtractCard sends the card image to the model and returns the coerced
// fields plus the raw model text for audit logging. Rate limits and
// overloads are retried a few times before the stage-level retry takes over.
func (c *Client) ExtractCard(ctx context.Context, imageData []byte, mimeType string) (Fields, string, error) {
	request := anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewImageMessageContent(
						anthropic.NewMessageContentSource(
							anthropic.MessagesContentSourceTypeBase64,
							normalizeMIME(mimeType),
							imageData,
						)),
					anthropic.NewTextMessageContent(extractionPrompt),
				},
			},
		},
	}

	var (
		resp anthropic.MessagesResponse
		err  error
	)
	for attempt := 1; attempt <= extractRetryAttempts; attempt++ {
		resp, err = c.api.CreateMessages(ctx, request)
		if err == nil {
			break
		}
		if !isRetryableAPIError(err) || attempt == extractRetryAttempts {
			return Fields{}, "", wrapAPIError(err)
		}
		c.logger.Warn("vision request retry",
			logging.Int("attempt", attempt),
			logging.Error(err))
		select {
		case <-time.After(extractRetryBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			return Fields{}, "", services.Wrap(services.ErrTimeout, "vision", "extract card",
				"Extraction cancelled while waiting to retry", ctx.Err())
		}
	}

	text := resp.GetFirstContentText()
	fields, parseErr := ParseResponse(text)
	if parseErr != nil {
		return Fields{}, text, services.Wrap(services.ErrExternalService, "vision", "extract card",
			"Vision service returned an unreadable response", parseErr)
	}
	return fields, text, nil
}

// Configured reports whether the client can reach the API at all. Used by
// stage health checks; no network call is made.
func (c *Client) Configured() bool {
	return c != nil && c.api != nil && c.model != ""
}

func isRetryableAPIError(err error) bool {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRateLimitErr() || apiErr.IsOverloadedErr() || apiErr.IsApiErr()
	}
	return false
}

func wrapAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "vision", "extract card",
			"Vision service did not respond in time", err)
	}
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsAuthenticationErr() || apiErr.IsPermissionErr() {
			return services.Wrap(services.ErrConfiguration, "vision", "extract card",
				"Vision service rejected the configured API key", err)
		}
		return services.Wrap(services.ErrExternalService, "vision", "extract card",
			fmt.Sprintf("Vision service error: %s", apiErr.Message), err)
	}
	return services.Wrap(services.ErrExternalService, "vision", "extract card",
		"Vision service request failed", err)
}

// normalizeMIME maps capture MIME types to the values the Anthropic API
// accepts. Unknown types are coerced to jpeg.
func normalizeMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
