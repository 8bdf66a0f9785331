package handlers

import (
	"context"
	"io"

	"github.com/gregaplay/backend/internal/billing"
	"github.com/gregaplay/backend/internal/models"
	"github.com/gregaplay/backend/internal/uploads"
)

// AccountStore captures the persistence operations required by the auth handlers.
type AccountStore interface {
	Create(ctx context.Context, account models.Account) error
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByID(ctx context.Context, id string) (models.Account, error)
}

// SessionManager issues, refreshes, and validates authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, accountID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// EventStore captures persistence for event workflows.
type EventStore interface {
	Create(ctx context.Context, event models.Event) error
	FindByID(ctx context.Context, id string) (models.Event, error)
	FindByCode(ctx context.Context, code string) (models.Event, error)
	ListForOwner(ctx context.Context, ownerID string) ([]models.Event, error)
	Update(ctx context.Context, event models.Event) error
	UpdateStatus(ctx context.Context, eventID, status string) error
	Delete(ctx context.Context, eventID string) error
}

// InvitationStore captures persistence for event invitations.
type InvitationStore interface {
	Create(ctx context.Context, invitation models.Invitation) error
	FindByID(ctx context.Context, id string) (models.Invitation, error)
	FindByEventAndEmail(ctx context.Context, eventID, email string) (models.Invitation, error)
	ListForEvent(ctx context.Context, eventID string) ([]models.Invitation, error)
	UpdateStatus(ctx context.Context, invitationID, status string) error
}

// SubmissionStore captures persistence for uploaded clips.
type SubmissionStore interface {
	Create(ctx context.Context, submission models.VideoSubmission) error
	FindByID(ctx context.Context, id string) (models.VideoSubmission, error)
	SummaryFor(ctx context.Context, eventID, accountID string) (int, *models.VideoSubmission, error)
	ListForEvent(ctx context.Context, eventID string) ([]models.VideoSubmission, error)
	ListForParticipant(ctx context.Context, eventID, accountID string) ([]models.VideoSubmission, error)
	Delete(ctx context.Context, id string) error
}

// ClipChecker validates a staged clip before its transfer begins.
type ClipChecker interface {
	Check(ctx context.Context, contentType string, sizeBytes int64, path string) (float64, error)
}

// ClipUploader streams validated clips into durable storage.
type ClipUploader interface {
	Store(ctx context.Context, eventID, submissionID, filename string, r io.Reader, size int64, observer func(uploads.Progress)) (string, error)
}

// BoostService starts boost purchases and applies completed payments.
type BoostService interface {
	CreateBoost(ctx context.Context, req billing.BoostRequest) (billing.BoostResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Notifier sends best-effort email notifications. Implementations never fail
// the triggering request.
type Notifier interface {
	SendInvitation(ctx context.Context, to, ownerName, eventTitle, eventURL string)
	SendUploadReceived(ctx context.Context, to, participantName, eventTitle string)
}
