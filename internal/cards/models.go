package cards

import "time"

// CardStatus tracks the review lifecycle of a saved card.
type CardStatus string

const (
	CardStatusExtracted CardStatus = "extracted"
	CardStatusReviewed  CardStatus = "reviewed"
)

// BatchStatus tracks whether every card in a batch has been reviewed.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusCompleted BatchStatus = "completed"
)

// SaveOutcome describes what happened when a card was offered for persistence.
type SaveOutcome string

const (
	// OutcomeSaved is a clean first save.
	OutcomeSaved SaveOutcome = "saved"
	// OutcomeDuplicateImage means the same image bytes were already saved in
	// this organization. No new card is created.
	OutcomeDuplicateImage SaveOutcome = "duplicate_image"
	// OutcomeDuplicatePerson means the card was saved but a matching person
	// was saved recently; the review workflow decides whether to merge.
	OutcomeDuplicatePerson SaveOutcome = "duplicate_person"
)

// ConnectCard is the durable result of one processed capture.
type ConnectCard struct {
	ID              int64
	OrgID           string
	LocationID      string
	BatchID         int64
	StorageKeyFront string
	StorageKeyBack  string
	Fingerprint     string
	FieldsJSON      string
	WarningsJSON    string
	PersonName      string
	PersonEmail     string
	PersonPhone     string
	Status          CardStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Batch groups the cards saved for one location on one day.
type Batch struct {
	ID         int64
	OrgID      string
	LocationID string
	Day        string
	Name       string
	Status     BatchStatus
	CardCount  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ScanToken lets a phone join an authenticated capture session via QR code.
type ScanToken struct {
	Token     string
	OrgID     string
	UserID    string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry.
func (t ScanToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// SaveResult reports the outcome of SaveCard along with the affected rows.
type SaveResult struct {
	Outcome SaveOutcome
	// Card is the saved card. Nil for OutcomeDuplicateImage.
	Card *ConnectCard
	// Batch is the batch the card joined. Nil for OutcomeDuplicateImage.
	Batch *Batch
	// Existing is the previously saved card that triggered a duplicate
	// outcome. Nil for OutcomeSaved.
	Existing *ConnectCard
}
