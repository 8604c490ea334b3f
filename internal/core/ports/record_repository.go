package ports

import (
	"context"
	"time"

	"github.com/powerbill/electricity-records/internal/core/domain"
)

// ListRecordsFilter carries the admin listing parameters.
type ListRecordsFilter struct {
	AccountID string               // empty = all accounts
	Status    domain.PaymentStatus // empty = any status
}

// RecordRepository defines persistence operations for meter records.
// Every listing is ordered newest first by creation time.
type RecordRepository interface {
	// Create persists a record whose derived fields are already populated and
	// assigns its ID.
	Create(ctx context.Context, rec *domain.MeterRecord) error
	// Latest returns the most recently created record of the account, or
	// (nil, nil) when the account has none.
	Latest(ctx context.Context, accountID string) (*domain.MeterRecord, error)
	// Recent returns up to limit of the account's newest records.
	Recent(ctx context.Context, accountID string, limit int) ([]*domain.MeterRecord, error)
	ListByAccount(ctx context.Context, accountID string) ([]*domain.MeterRecord, error)
	List(ctx context.Context, filter ListRecordsFilter) ([]*domain.MeterRecord, error)
	FindByID(ctx context.Context, id string) (*domain.MeterRecord, error)
	// UpdatePaymentStatus moves a record from one status to another and
	// returns the updated record. The write only applies while the stored
	// status is still from; otherwise it fails with domain.ErrStatusConflict.
	// A missing record yields domain.ErrRecordNotFound.
	UpdatePaymentStatus(ctx context.Context, id string, from, to domain.PaymentStatus, paymentDate *time.Time, updatedAt time.Time) (*domain.MeterRecord, error)
}

// IdempotencyStore remembers which record a client-supplied Idempotency-Key produced.
type IdempotencyStore interface {
	Lookup(ctx context.Context, accountID, key string) (recordID string, found bool, err error)
	Remember(ctx context.Context, accountID, key, recordID string) error
}
