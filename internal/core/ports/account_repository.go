package ports

import (
	"context"

	"github.com/powerbill/electricity-records/internal/core/domain"
)

// AccountRepository defines the interface for account persistence.
// Email and meter number are unique; Create reports a clash as domain.ErrAccountExists.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	// FindByIDs returns the accounts that exist, keyed by ID.
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Account, error)
	List(ctx context.Context) ([]*domain.Account, error)
}
