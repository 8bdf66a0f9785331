package repositories

import (
	"context"
	"time"

	"github.com/gregaplay/backend/internal/models"
)

// EventRepository defines data access for events.
type EventRepository interface {
	Create(ctx context.Context, event models.Event) error
	FindByID(ctx context.Context, id string) (models.Event, error)
	FindByCode(ctx context.Context, code string) (models.Event, error)
	ListForOwner(ctx context.Context, ownerID string) ([]models.Event, error)
	Update(ctx context.Context, event models.Event) error
	UpdateStatus(ctx context.Context, eventID, status string) error
	ActivateBoost(ctx context.Context, eventID string, expiresAt time.Time) error
	Delete(ctx context.Context, eventID string) error
}
