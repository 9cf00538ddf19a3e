package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queued card capture.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusUploading  Status = "uploading"
	StatusUploaded   Status = "uploaded"
	StatusExtracting Status = "extracting"
	StatusExtracted  Status = "extracted"
	StatusSaving     Status = "saving"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDuplicate  Status = "duplicate"
)

// DaemonStopReason is the error message set when items are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusQueued,
	StatusUploading,
	StatusUploaded,
	StatusExtracting,
	StatusExtracted,
	StatusSaving,
	StatusCompleted,
	StatusFailed,
	StatusDuplicate,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusUploading:  {},
	StatusExtracting: {},
	StatusSaving:     {},
}

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusDuplicate: {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions return an in-flight item to the start of its
// current stage without losing work from earlier stages.
var stageRollbackTransitions = []statusTransition{
	{from: StatusUploading, to: StatusQueued},
	{from: StatusExtracting, to: StatusUploaded},
	{from: StatusSaving, to: StatusExtracted},
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Completed  int
	Failed     int
	Duplicate  int
}

// DatabaseHealth captures diagnostic information about the intake database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// Item represents a card capture persisted in SQLite.
type Item struct {
	ID                int64
	OrgID             string
	LocationID        string
	SessionID         string
	SourcePath        string
	OriginalFilename  string
	ContentType       string
	SizeBytes         int64
	Status            Status
	StorageKey        string
	Fingerprint       string
	FieldsJSON        string
	WarningsJSON      string
	CardID            int64
	DuplicateOfCardID int64
	FailedStage       string
	ErrorMessage      string
	Attempts          int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastHeartbeat     *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal returns true when the item has settled and no worker will pick
// it up without an explicit retry.
func (i Item) IsTerminal() bool {
	return IsTerminalStatus(i.Status)
}

// IsTerminalStatus reports whether a status is settled.
func IsTerminalStatus(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// ResumeStatus computes the earliest stage boundary the item can restart
// from based on the data it has already produced. An item that uploaded its
// image does not upload again; one that extracted fields does not call the
// vision service again.
func (i Item) ResumeStatus() Status {
	if i.StorageKey == "" {
		return StatusQueued
	}
	if i.Fingerprint == "" || i.FieldsJSON == "" {
		return StatusUploaded
	}
	return StatusExtracted
}

// SetFailed marks the item as failed at the given stage. The heartbeat is
// cleared so the item is not mistaken for in-flight work.
func (i *Item) SetFailed(stage, message string) {
	i.Status = StatusFailed
	i.FailedStage = stage
	i.ErrorMessage = message
	i.LastHeartbeat = nil
}

// SetDuplicate marks the item as a duplicate of an already saved card.
func (i *Item) SetDuplicate(cardID int64) {
	i.Status = StatusDuplicate
	i.DuplicateOfCardID = cardID
	i.ErrorMessage = ""
	i.LastHeartbeat = nil
}
