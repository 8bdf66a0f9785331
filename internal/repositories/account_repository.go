package repositories

import (
	"context"
	"time"

	"github.com/gregaplay/backend/internal/models"
)

// AccountRepository defines the data access contract for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account models.Account) error
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByID(ctx context.Context, id string) (models.Account, error)
	Update(ctx context.Context, account models.Account) error
	ActivatePremium(ctx context.Context, accountID string, expiresAt time.Time) error
}
