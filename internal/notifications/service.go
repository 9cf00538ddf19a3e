package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"narthex/internal/config"
)

const userAgent = "Narthex/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifySessionStarted(ctx context.Context, pending int) error
	NotifySessionSettled(ctx context.Context, saved, duplicates, failed int, duration time.Duration) error
	NotifyCaptureFailed(ctx context.Context, filename, stage string, err error) error
	NotifyBatchCompleted(ctx context.Context, day string, cardCount int) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		sessionSummary: cfg.Notifications.SessionSummary,
		errors:         cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	sessionSummary bool
	errors         bool
}

func (n *ntfyService) NotifySessionStarted(ctx context.Context, pending int) error {
	if !n.sessionSummary {
		return nil
	}
	data := payload{
		title:   "Narthex - Session Started",
		message: fmt.Sprintf("Started processing session with %d captures", pending),
		tags:    []string{"narthex", "session", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySessionSettled(ctx context.Context, saved, duplicates, failed int, duration time.Duration) error {
	if !n.sessionSummary {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title string
	var message string
	if failed == 0 {
		title = "Narthex - Session Complete"
		message = fmt.Sprintf("Session complete: %d cards saved, %d duplicates in %s", saved, duplicates, durationText)
	} else {
		title = "Narthex - Session Complete (with errors)"
		message = fmt.Sprintf("Session complete: %d saved, %d duplicates, %d failed in %s", saved, duplicates, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"narthex", "session", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCaptureFailed(ctx context.Context, filename, stage string, err error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Capture failed")
	if filename = strings.TrimSpace(filename); filename != "" {
		builder.WriteString(": ")
		builder.WriteString(filename)
	}
	if stage = strings.TrimSpace(stage); stage != "" {
		builder.WriteString(" (")
		builder.WriteString(stage)
		builder.WriteString(")")
	}
	builder.WriteString("\n")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown error")
	}

	data := payload{
		title:    "Narthex - Error",
		message:  builder.String(),
		tags:     []string{"narthex", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, day string, cardCount int) error {
	if !n.sessionSummary {
		return nil
	}
	data := payload{
		title:   "Narthex - Batch Reviewed",
		message: fmt.Sprintf("Batch for %s fully reviewed: %d cards", strings.TrimSpace(day), cardCount),
		tags:    []string{"narthex", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Narthex - Test",
		message:  "Notification system test",
		tags:     []string{"narthex", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySessionStarted(context.Context, int) error { return nil }
func (noopService) NotifySessionSettled(context.Context, int, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyCaptureFailed(context.Context, string, string, error) error { return nil }
func (noopService) NotifyBatchCompleted(context.Context, string, int) error          { return nil }
func (noopService) TestNotification(context.Context) error                           { return nil }
