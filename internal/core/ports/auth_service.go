package ports

import (
	"context"

	"github.com/powerbill/electricity-records/internal/core/domain"
)

// RegisterInput carries the self-service registration fields.
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	MeterNumber string
	Address     string
	Phone       string
}

// AdminSeed describes the optional bootstrap admin created at startup.
type AdminSeed struct {
	Name     string
	Email    string
	Password string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (string, *domain.Account, error)
	Login(ctx context.Context, email, password string) (string, *domain.Account, error)
	CurrentAccount(ctx context.Context, principal domain.Principal) (*domain.Account, error)
	ListAccounts(ctx context.Context, principal domain.Principal) ([]*domain.Account, error)
}
