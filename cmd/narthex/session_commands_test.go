package main

import (
	"context"
	"testing"

	"narthex/internal/queue"
)

func TestSessionStatusResumeAndDiscard(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.NewCapture(ctx, queue.NewCaptureParams{
		OrgID:            "test-org",
		LocationID:       "test-location",
		SessionID:        "previous-session",
		OriginalFilename: "leftover.jpg",
		ContentType:      "image/jpeg",
	}); err != nil {
		t.Fatalf("leftover capture: %v", err)
	}

	out, _, err := runCLI(t, []string{"session", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("session status: %v", err)
	}
	requireContains(t, out, "Session: cli-test-session")
	requireContains(t, out, "Unfinished captures from previous sessions: 1")
	requireContains(t, out, "leftover.jpg")

	out, _, err = runCLI(t, []string{"session", "resume"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("session resume: %v", err)
	}
	requireContains(t, out, "Adopted 1 captures into the current session")

	out, _, err = runCLI(t, []string{"session", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("session status after resume: %v", err)
	}
	requireContains(t, out, "No unfinished captures from previous sessions")

	out, _, err = runCLI(t, []string{"session", "discard"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("session discard: %v", err)
	}
	requireContains(t, out, "Nothing to discard")
}
