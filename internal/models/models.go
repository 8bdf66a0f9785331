package models

import "time"

// Account represents a registered Grega Play user.
type Account struct {
	ID               string
	Email            string
	Password         string
	BirthDate        string
	IsPremium        bool
	PremiumExpiresAt *time.Time
	LegacyPremium    bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Event statuses. Time expiry is derived from the deadline, not stored.
const (
	EventStatusOpen       = "open"
	EventStatusReady      = "ready"
	EventStatusProcessing = "processing"
	EventStatusDone       = "done"
	EventStatusCanceled   = "canceled"
)

// Event visibilities.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Event represents a collaborative video event owned by an organizer.
type Event struct {
	ID               string
	Title            string
	Status           string
	Deadline         *time.Time
	Visibility       string
	OwnerID          string
	IsPremium        bool
	PremiumExpiresAt *time.Time
	PublicCode       string
	NotifyOnUpload   bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Invitation statuses. The default "sent" matches the legacy French value
// "envoyée" stored by the original application.
const (
	InvitationStatusSent     = "sent"
	InvitationStatusAccepted = "accepted"
	InvitationStatusDeclined = "declined"
)

// Invitation links an event to an invited email address. The email may not
// belong to any registered account yet.
type Invitation struct {
	ID          string
	EventID     string
	Email       string
	Status      string
	CreatedAt   time.Time
	RespondedAt *time.Time
}

// VideoSubmission stores one uploaded clip for an event. Submissions are
// immutable once created; only the event owner may delete them.
type VideoSubmission struct {
	ID              string
	EventID         string
	AccountID       string
	ParticipantName string
	Location        string
	SizeBytes       int64
	DurationSeconds float64
	CreatedAt       time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated accounts.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
