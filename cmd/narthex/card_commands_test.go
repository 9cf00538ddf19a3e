package main

import (
	"testing"
)

func TestScanTokenCreateCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"scan-token", "create"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("scan-token create: %v", err)
	}
	requireContains(t, out, "Token: ")
	requireContains(t, out, "Org: test-org")
	requireContains(t, out, "Expires: ")
}

func TestCardReviewMissingCard(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"card", "review", "42"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for missing card")
	}
	requireContains(t, err.Error(), "not found")
}

func TestBatchListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"batch", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("batch list: %v", err)
	}
	requireContains(t, out, "No batches")
}
