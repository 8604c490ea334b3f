package ports

import (
	"context"
	"time"

	"github.com/powerbill/electricity-records/internal/core/domain"
)

// CreateRecordInput carries a raw reading submission. Numeric fields stay as
// submitted text so that malformed numbers surface as validation errors.
type CreateRecordInput struct {
	CurrentReading  string
	PreviousReading string // only honoured for the account's first record
	RatePerUnit     string // empty = configured default
	DueDate         string
	Remarks         string
	IdempotencyKey  string
	BillImage       *BillImageUpload // optional
}

// RecordResult is returned by the service after creating a record.
type RecordResult struct {
	Record *domain.MeterRecord
	// AlreadyExisted is true when the Idempotency-Key matched an earlier submission.
	AlreadyExisted bool
}

// AccountSummary is the owner view embedded in admin listings.
type AccountSummary struct {
	ID          string
	Name        string
	Email       string
	MeterNumber string
}

// AdminRecord is a record together with its owning account.
type AdminRecord struct {
	Record  *domain.MeterRecord
	Account *AccountSummary // nil if the owner no longer exists
}

// PaymentStatusResult is a record after a payment status change together
// with the status it moved from.
type PaymentStatusResult struct {
	Record   *domain.MeterRecord
	Previous domain.PaymentStatus
}

// RecordService defines use-case operations for meter records.
type RecordService interface {
	CreateRecord(ctx context.Context, principal domain.Principal, input CreateRecordInput) (*RecordResult, error)
	LatestRecord(ctx context.Context, principal domain.Principal) (*domain.MeterRecord, error)
	MyRecords(ctx context.Context, principal domain.Principal) ([]*domain.MeterRecord, error)
	GetRecord(ctx context.Context, principal domain.Principal, id string) (*domain.MeterRecord, error)
	AdminRecords(ctx context.Context, principal domain.Principal, status string) ([]AdminRecord, error)
	SetPaymentStatus(ctx context.Context, principal domain.Principal, id, status string) (*PaymentStatusResult, error)
}

// Clock returns the current time. Services take one so tests can pin time.
type Clock func() time.Time
