package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narthex/internal/services"
	"narthex/internal/testsupport"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Vision.BaseURL = server.URL + "/v1"

	client, err := New(cfg, nil)
	require.NoError(t, err)
	return client
}

func TestExtractCard(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id":   "msg_1",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"name":"Jordan Avery","email":"jordan@example.com"}`},
			},
			"model":       "claude-3-5-haiku-latest",
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 100, "output_tokens": 20},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	fields, raw, err := client.ExtractCard(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg")
	require.NoError(t, err)
	assert.Contains(t, raw, "Jordan Avery")
	require.NotNil(t, fields.Name)
	assert.Equal(t, "Jordan Avery", *fields.Name)
	require.NotNil(t, fields.Email)
	assert.Equal(t, "jordan@example.com", *fields.Email)
}

func TestExtractCardUnreadableResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id":   "msg_1",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": "I cannot read this card."},
			},
			"model": "claude-3-5-haiku-latest",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	_, _, err := client.ExtractCard(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg")
	require.Error(t, err)
	assert.True(t, services.IsRetryable(err))
}

func TestExtractCardAuthFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]string{"type": "authentication_error", "message": "invalid x-api-key"},
		})
	})

	_, _, err := client.ExtractCard(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg")
	require.Error(t, err)
	assert.False(t, services.IsRetryable(err))
}

func TestNewRequiresAPIKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Vision.APIKey = ""
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestNormalizeMIME(t *testing.T) {
	assert.Equal(t, "image/png", normalizeMIME("image/png"))
	assert.Equal(t, "image/webp", normalizeMIME("image/webp"))
	assert.Equal(t, "image/jpeg", normalizeMIME("image/heic"))
	assert.Equal(t, "image/jpeg", normalizeMIME(""))
}
