package repositories

import (
	"context"

	"github.com/gregaplay/backend/internal/models"
)

// SubmissionRepository defines data access for uploaded clips. Submissions
// are append-only; the only mutation is an owner delete.
type SubmissionRepository interface {
	Create(ctx context.Context, submission models.VideoSubmission) error
	FindByID(ctx context.Context, id string) (models.VideoSubmission, error)
	// SummaryFor returns the caller's submission count and most recent clip
	// for the event. The count must reflect the latest committed upload.
	SummaryFor(ctx context.Context, eventID, accountID string) (int, *models.VideoSubmission, error)
	ListForEvent(ctx context.Context, eventID string) ([]models.VideoSubmission, error)
	ListForParticipant(ctx context.Context, eventID, accountID string) ([]models.VideoSubmission, error)
	Delete(ctx context.Context, id string) error
}
