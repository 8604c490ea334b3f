package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/powerbill/electricity-records/internal/core/domain"
	"github.com/powerbill/electricity-records/internal/core/ports"
)

const (
	defaultTokenTTL   = 7 * 24 * time.Hour
	minPasswordLength = 6
)

// Claims is the JWT payload issued at login and registration. The subject is
// the account ID.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService implements registration, login and account lookup.
type AuthService struct {
	repo      ports.AccountRepository
	jwtSecret string
	tokenTTL  time.Duration
	now       ports.Clock
	log       zerolog.Logger
}

func NewAuthService(repo ports.AccountRepository, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &AuthService{
		repo:      repo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		now:       time.Now,
		log:       log,
	}
}

// Register creates a user account and returns a session token for it.
// Registration never grants the admin role.
func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (string, *domain.Account, error) {
	input = normalizeRegistration(input)
	if err := validateRegistration(input); err != nil {
		return "", nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &domain.Account{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		MeterNumber:  input.MeterNumber,
		Address:      input.Address,
		Phone:        input.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return "", nil, err
	}

	token, err := s.IssueToken(created)
	if err != nil {
		return "", nil, err
	}
	s.log.Info().Str("account_id", created.ID).Str("meter_number", created.MeterNumber).Msg("account registered")
	return token, created, nil
}

// Login verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return "", nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.IssueToken(account)
	if err != nil {
		return "", nil, err
	}
	return token, account, nil
}

// CurrentAccount returns the principal's own profile.
func (s *AuthService) CurrentAccount(ctx context.Context, principal domain.Principal) (*domain.Account, error) {
	if !principal.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	account, err := s.repo.FindByID(ctx, principal.AccountID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		// the token outlived its account
		return nil, domain.ErrUnauthenticated
	}
	return account, err
}

// ListAccounts returns every account. Admin only.
func (s *AuthService) ListAccounts(ctx context.Context, principal domain.Principal) ([]*domain.Account, error) {
	if err := domain.CanReadAll(principal); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
// An empty seed is a no-op.
func (s *AuthService) EnsureAdmin(ctx context.Context, seed ports.AdminSeed) error {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	if email == "" || seed.Password == "" {
		return nil
	}
	if len(seed.Password) < minPasswordLength {
		return domain.NewValidationError("password", domain.ReasonTooShort,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	name := seed.Name
	if name == "" {
		name = "Administrator"
	}
	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &domain.Account{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		// meter_number is unique; admins own no meter.
		MeterNumber: "admin:" + email,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if errors.Is(err, domain.ErrAccountExists) {
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info().Str("account_id", created.ID).Msg("bootstrap admin created")
	return nil
}

// IssueToken signs a session token for account.
func (s *AuthService) IssueToken(account *domain.Account) (string, error) {
	now := s.now()
	claims := Claims{
		Role: account.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func normalizeRegistration(in ports.RegisterInput) ports.RegisterInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.MeterNumber = strings.TrimSpace(in.MeterNumber)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

func validateRegistration(in ports.RegisterInput) error {
	required := []struct{ field, value string }{
		{"name", in.Name},
		{"email", in.Email},
		{"password", in.Password},
		{"meter_number", in.MeterNumber},
		{"address", in.Address},
		{"phone", in.Phone},
	}
	for _, r := range required {
		if r.value == "" {
			return domain.NewValidationError(r.field, domain.ReasonRequired, r.field+" is required")
		}
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return domain.NewValidationError("email", domain.ReasonInvalidEmail, "email must be a valid address")
	}
	if len(in.Password) < minPasswordLength {
		return domain.NewValidationError("password", domain.ReasonTooShort,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return nil
}
