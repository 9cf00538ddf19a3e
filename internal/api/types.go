package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes an intake capture in a transport-friendly format.
type QueueItem struct {
	ID                int64           `json:"id"`
	OrgID             string          `json:"orgId"`
	LocationID        string          `json:"locationId,omitempty"`
	SessionID         string          `json:"sessionId"`
	SourcePath        string          `json:"sourcePath,omitempty"`
	OriginalFilename  string          `json:"originalFilename,omitempty"`
	ContentType       string          `json:"contentType,omitempty"`
	SizeBytes         int64           `json:"sizeBytes,omitempty"`
	Status            string          `json:"status"`
	StorageKey        string          `json:"storageKey,omitempty"`
	Fingerprint       string          `json:"fingerprint,omitempty"`
	Fields            json.RawMessage `json:"fields,omitempty"`
	Warnings          json.RawMessage `json:"warnings,omitempty"`
	CardID            int64           `json:"cardId,omitempty"`
	DuplicateOfCardID int64           `json:"duplicateOfCardId,omitempty"`
	FailedStage       string          `json:"failedStage,omitempty"`
	ErrorMessage      string          `json:"errorMessage,omitempty"`
	Attempts          int             `json:"attempts"`
	CreatedAt         string          `json:"createdAt,omitempty"`
	UpdatedAt         string          `json:"updatedAt,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Held        bool           `json:"held"`
	SessionID   string         `json:"sessionId"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastItem    *QueueItem     `json:"lastItem,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	IntakeDBPath string         `json:"intakeDbPath"`
	CardsDBPath  string         `json:"cardsDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// SessionStatus reports the recovery state of the intake session.
type SessionStatus struct {
	SessionID       string      `json:"sessionId"`
	PendingPrevious []QueueItem `json:"pendingPrevious"`
	Settled         bool        `json:"settled"`
}

// Card describes a saved connect card.
type Card struct {
	ID              int64           `json:"id"`
	OrgID           string          `json:"orgId"`
	LocationID      string          `json:"locationId,omitempty"`
	BatchID         int64           `json:"batchId"`
	StorageKeyFront string          `json:"storageKeyFront,omitempty"`
	StorageKeyBack  string          `json:"storageKeyBack,omitempty"`
	Fields          json.RawMessage `json:"fields,omitempty"`
	Warnings        json.RawMessage `json:"warnings,omitempty"`
	PersonName      string          `json:"personName,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       string          `json:"createdAt,omitempty"`
	UpdatedAt       string          `json:"updatedAt,omitempty"`
}

// Batch describes a day's worth of reviewed cards.
type Batch struct {
	ID         int64  `json:"id"`
	OrgID      string `json:"orgId"`
	LocationID string `json:"locationId,omitempty"`
	Day        string `json:"day"`
	Name       string `json:"name,omitempty"`
	Status     string `json:"status"`
	CardCount  int    `json:"cardCount"`
	CreatedAt  string `json:"createdAt,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// ScanToken carries a short-lived phone hand-off credential.
type ScanToken struct {
	Token     string `json:"token"`
	OrgID     string `json:"orgId"`
	ExpiresAt string `json:"expiresAt"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// BatchListResponse wraps batches for API responses.
type BatchListResponse struct {
	Batches []Batch `json:"batches"`
}

// CardListResponse wraps cards for API responses.
type CardListResponse struct {
	Cards []Card `json:"cards"`
}

// AffectedResponse reports how many rows an operation touched.
type AffectedResponse struct {
	Affected int64 `json:"affected"`
}
