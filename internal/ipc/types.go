package ipc

import "narthex/internal/api"

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// QueueItem mirrors the HTTP API queue DTO for internal IPC callers.
type QueueItem = api.QueueItem

// StageHealth describes readiness of a workflow stage.
type StageHealth = api.StageHealth

// Card mirrors the HTTP API card DTO.
type Card = api.Card

// Batch mirrors the HTTP API batch DTO.
type Batch = api.Batch

// ScanToken mirrors the HTTP API scan token DTO.
type ScanToken = api.ScanToken

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running      bool           `json:"running"`
	Held         bool           `json:"held"`
	SessionID    string         `json:"session_id"`
	QueueStats   map[string]int `json:"queue_stats"`
	LastError    string         `json:"last_error"`
	LastItem     *QueueItem     `json:"last_item"`
	LockPath     string         `json:"lock_path"`
	IntakeDBPath string         `json:"intake_db_path"`
	CardsDBPath  string         `json:"cards_db_path"`
	StageHealth  []StageHealth  `json:"stage_health"`
	PID          int            `json:"pid"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueAddRequest enqueues a capture from a local image path.
type QueueAddRequest struct {
	Path       string `json:"path"`
	OrgID      string `json:"org_id"`
	LocationID string `json:"location_id"`
}

// QueueAddResponse returns the enqueued capture.
type QueueAddResponse struct {
	Item QueueItem `json:"item"`
}

// QueueDescribeRequest fetches a single queue item by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Item QueueItem `json:"item"`
}

// QueueRemoveRequest removes one capture by id.
type QueueRemoveRequest struct {
	ID int64 `json:"id"`
}

// QueueRemoveResponse reports whether a capture was removed.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
}

// QueueClearRequest removes all items.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearFailedRequest removes failed items.
type QueueClearFailedRequest struct{}

// QueueClearFailedResponse reports number of removed entries.
type QueueClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearCompletedRequest removes settled items.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports number of removed entries.
type QueueClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueResetRequest resets in-flight items.
type QueueResetRequest struct{}

// QueueResetResponse reports number of items reset.
type QueueResetResponse struct {
	Updated int64 `json:"updated"`
}

// QueueRetryRequest retries failed and duplicate items. An empty list means
// all of them.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports number of retried items.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue health information.
type QueueHealthResponse struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Duplicate  int `json:"duplicate"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	TableExists      bool     `json:"table_exists"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalItems       int      `json:"total_items"`
	Error            string   `json:"error"`
}

// SessionStatusRequest fetches the intake session state.
type SessionStatusRequest struct{}

// SessionStatusResponse reports the current session and leftovers from
// earlier daemon runs.
type SessionStatusResponse struct {
	SessionID       string      `json:"session_id"`
	PendingPrevious []QueueItem `json:"pending_previous"`
	Settled         bool        `json:"settled"`
}

// SessionResumeRequest adopts leftover captures into the current session.
type SessionResumeRequest struct{}

// SessionResumeResponse reports number of adopted captures.
type SessionResumeResponse struct {
	Adopted int64 `json:"adopted"`
}

// SessionDiscardRequest deletes leftover captures from earlier sessions.
type SessionDiscardRequest struct{}

// SessionDiscardResponse reports number of discarded captures.
type SessionDiscardResponse struct {
	Discarded int64 `json:"discarded"`
}

// BatchListRequest lists card batches for an organization. An empty OrgID
// selects the configured default organization.
type BatchListRequest struct {
	OrgID string `json:"org_id"`
}

// BatchListResponse contains batch entries.
type BatchListResponse struct {
	Batches []Batch `json:"batches"`
}

// BatchCardsRequest lists the cards inside one batch.
type BatchCardsRequest struct {
	OrgID   string `json:"org_id"`
	BatchID int64  `json:"batch_id"`
}

// BatchCardsResponse contains card entries.
type BatchCardsResponse struct {
	Cards []Card `json:"cards"`
}

// CardReviewRequest marks a card reviewed.
type CardReviewRequest struct {
	OrgID  string `json:"org_id"`
	CardID int64  `json:"card_id"`
}

// CardReviewResponse reports review outcome.
type CardReviewResponse struct {
	Reviewed bool `json:"reviewed"`
}

// CardDeleteRequest removes a card.
type CardDeleteRequest struct {
	OrgID  string `json:"org_id"`
	CardID int64  `json:"card_id"`
}

// CardDeleteResponse reports whether a card was removed.
type CardDeleteResponse struct {
	Removed bool `json:"removed"`
}

// ScanTokenCreateRequest mints a phone hand-off token.
type ScanTokenCreateRequest struct {
	OrgID  string `json:"org_id"`
	UserID string `json:"user_id"`
}

// ScanTokenCreateResponse returns the minted token.
type ScanTokenCreateResponse struct {
	Token ScanToken `json:"token"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
