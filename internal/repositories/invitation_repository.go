package repositories

import (
	"context"

	"github.com/gregaplay/backend/internal/models"
)

// InvitationRepository defines data access for event invitations.
type InvitationRepository interface {
	Create(ctx context.Context, invitation models.Invitation) error
	FindByID(ctx context.Context, id string) (models.Invitation, error)
	FindByEventAndEmail(ctx context.Context, eventID, email string) (models.Invitation, error)
	ListForEvent(ctx context.Context, eventID string) ([]models.Invitation, error)
	UpdateStatus(ctx context.Context, invitationID, status string) error
}
