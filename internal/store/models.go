package store

import "time"

// Review / player-edit / equipment-submission status values. Reviews pass
// through a two-stage consensus path; the other two kinds are single-stage.
const (
	StatusPending        = "pending"
	StatusAwaitingSecond = "awaiting_second_approval"
	StatusApproved       = "approved"
	StatusRejected       = "rejected"
)

// Moderatable item kinds, as recorded in the action log.
const (
	ItemTypeReview              = "review"
	ItemTypePlayerEdit          = "player_edit"
	ItemTypeEquipmentSubmission = "equipment_submission"
)

// Moderation actions.
const (
	ActionApproved = "approved"
	ActionRejected = "rejected"
)

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Equipment struct {
	ID          string
	Slug        string
	Name        string
	Brand       string
	Category    string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Player struct {
	ID             string
	Slug           string
	Name           string
	Country        string
	Grip           string
	Blade          string
	ForehandRubber string
	BackhandRubber string
	UpdatedAt      time.Time
}

type Review struct {
	ID             string
	EquipmentID    string
	SubmitterID    string
	Rating         int
	Title          string
	Body           string
	Status         string
	Published      bool
	ModeratorID    string
	ModeratorNotes string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PlayerEdit is a community-submitted partial diff against a player record.
// Fields holds only the columns the submitter wants changed.
type PlayerEdit struct {
	ID             string
	PlayerID       string
	SubmitterID    string
	Fields         map[string]string
	Status         string
	ModeratorID    string
	ModeratorNotes string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type EquipmentSubmission struct {
	ID             string
	SubmitterID    string
	Name           string
	Brand          string
	Category       string
	Description    string
	Status         string
	ModeratorID    string
	ModeratorNotes string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ModerationAction is one append-only audit entry per moderator decision.
type ModerationAction struct {
	ID          int64
	ItemID      string
	ItemType    string
	ModeratorID string
	Action      string
	Reason      string
	CreatedAt   time.Time
}

// StatusCounts aggregates one item kind's queue by status.
type StatusCounts struct {
	Pending  int
	Approved int
	Rejected int
}

func (c StatusCounts) Total() int {
	return c.Pending + c.Approved + c.Rejected
}
