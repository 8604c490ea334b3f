package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/powerbill/electricity-records/internal/core/anomaly"
	"github.com/powerbill/electricity-records/internal/core/domain"
	"github.com/powerbill/electricity-records/internal/core/ports"
)

const (
	defaultRatePerUnit   = 8
	defaultAnomalyWindow = 6
)

// RecordServiceConfig holds the tunables of RecordService.
type RecordServiceConfig struct {
	DefaultRatePerUnit float64
	AnomalyWindow      int
}

// RecordService implements reading submission, record reads and the admin
// payment workflow. Idempotency, images, anomaly detection and events are
// optional collaborators; nil disables them.
type RecordService struct {
	records     ports.RecordRepository
	accounts    ports.AccountRepository
	idempotency ports.IdempotencyStore
	images      ports.BillImageStore
	events      ports.EventSink
	detector    *anomaly.Detector
	cfg         RecordServiceConfig
	now         ports.Clock
	log         zerolog.Logger
}

// RecordServiceOption configures optional collaborators.
type RecordServiceOption func(*RecordService)

func WithIdempotencyStore(store ports.IdempotencyStore) RecordServiceOption {
	return func(s *RecordService) { s.idempotency = store }
}

func WithBillImageStore(store ports.BillImageStore) RecordServiceOption {
	return func(s *RecordService) { s.images = store }
}

func WithEventSink(sink ports.EventSink) RecordServiceOption {
	return func(s *RecordService) { s.events = sink }
}

func WithAnomalyDetector(d *anomaly.Detector) RecordServiceOption {
	return func(s *RecordService) { s.detector = d }
}

func WithClock(now ports.Clock) RecordServiceOption {
	return func(s *RecordService) { s.now = now }
}

func NewRecordService(
	records ports.RecordRepository,
	accounts ports.AccountRepository,
	cfg RecordServiceConfig,
	log zerolog.Logger,
	opts ...RecordServiceOption,
) *RecordService {
	if cfg.DefaultRatePerUnit <= 0 {
		cfg.DefaultRatePerUnit = defaultRatePerUnit
	}
	if cfg.AnomalyWindow <= 0 {
		cfg.AnomalyWindow = defaultAnomalyWindow
	}
	s := &RecordService{
		records:  records,
		accounts: accounts,
		cfg:      cfg,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRecord validates a reading submission, derives its charge and persists
// it. When an idempotency key is provided and already seen, the previously
// created record is returned without side effects.
func (s *RecordService) CreateRecord(ctx context.Context, principal domain.Principal, input ports.CreateRecordInput) (*ports.RecordResult, error) {
	if err := domain.CanCreate(principal); err != nil {
		return nil, err
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if replay := s.replay(ctx, principal, key); replay != nil {
		return &ports.RecordResult{Record: replay, AlreadyExisted: true}, nil
	}

	account, err := s.accounts.FindByID(ctx, principal.AccountID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, domain.ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}

	latest, err := s.records.Latest(ctx, principal.AccountID)
	if err != nil {
		return nil, fmt.Errorf("create record: latest: %w", err)
	}

	// Chain invariant: only the first record takes an external previous reading.
	var previous float64
	if latest != nil {
		previous = latest.CurrentReading
	} else if previous, err = domain.ParseInitialReading(input.PreviousReading); err != nil {
		return nil, err
	}

	current, dueDate, err := domain.ValidateSubmission(previous, input.CurrentReading, input.DueDate)
	if err != nil {
		return nil, err
	}
	rate, err := domain.ParseRate(input.RatePerUnit, s.cfg.DefaultRatePerUnit)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &domain.MeterRecord{
		AccountID:       account.ID,
		MeterNumber:     account.MeterNumber,
		PreviousReading: previous,
		CurrentReading:  current,
		RatePerUnit:     rate,
		DueDate:         dueDate,
		PaymentStatus:   domain.PaymentPending,
		Remarks:         strings.TrimSpace(input.Remarks),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	charge := domain.CalculateCharge(rec.PreviousReading, rec.CurrentReading, rec.RatePerUnit)
	if err := charge.Validate(); err != nil {
		return nil, err
	}
	rec.ApplyCharge(charge)
	rec.Anomaly = s.checkAnomaly(ctx, rec)

	if input.BillImage != nil && s.images != nil {
		ref, err := s.images.Save(ctx, *input.BillImage)
		if err != nil {
			return nil, err
		}
		rec.BillImage = ref
	}

	if err := s.records.Create(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("account_id", rec.AccountID).Msg("failed to create record")
		s.discardImage(ctx, rec.BillImage)
		return nil, fmt.Errorf("create record: %w", err)
	}

	if key != "" && s.idempotency != nil {
		if err := s.idempotency.Remember(ctx, principal.AccountID, key, rec.ID); err != nil {
			s.log.Warn().Err(err).Str("idempotency_key", key).Msg("failed to store idempotency key")
		}
	}

	s.publish(ctx, ports.EventRecordCreated, rec)
	s.log.Info().
		Str("record_id", rec.ID).
		Str("account_id", rec.AccountID).
		Float64("units", rec.UnitsConsumed).
		Float64("amount", rec.TotalAmount).
		Msg("record created")

	return &ports.RecordResult{Record: rec}, nil
}

// LatestRecord returns the principal's most recent record, or nil when none exists.
func (s *RecordService) LatestRecord(ctx context.Context, principal domain.Principal) (*domain.MeterRecord, error) {
	if !principal.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	rec, err := s.records.Latest(ctx, principal.AccountID)
	if err != nil {
		return nil, fmt.Errorf("latest record: %w", err)
	}
	return rec, nil
}

// MyRecords returns every record the principal owns, newest first.
func (s *RecordService) MyRecords(ctx context.Context, principal domain.Principal) ([]*domain.MeterRecord, error) {
	if !principal.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	recs, err := s.records.ListByAccount(ctx, principal.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return recs, nil
}

// GetRecord returns a single record. Records the principal may not read are
// reported exactly like absent ones.
func (s *RecordService) GetRecord(ctx context.Context, principal domain.Principal, id string) (*domain.MeterRecord, error) {
	if !principal.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	rec, err := s.records.FindByID(ctx, id)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	if err := domain.CanReadOwn(principal, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// AdminRecords lists every record, optionally filtered by payment status, with
// the owning account summary attached.
func (s *RecordService) AdminRecords(ctx context.Context, principal domain.Principal, status string) ([]ports.AdminRecord, error) {
	if err := domain.CanReadAll(principal); err != nil {
		return nil, err
	}

	var filter ports.ListRecordsFilter
	if status = strings.TrimSpace(status); status != "" {
		parsed, err := domain.ParsePaymentStatus(status)
		if err != nil {
			return nil, err
		}
		filter.Status = parsed
	}

	recs, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	ids := make([]string, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		if _, ok := seen[r.AccountID]; ok {
			continue
		}
		seen[r.AccountID] = struct{}{}
		ids = append(ids, r.AccountID)
	}
	owners, err := s.accounts.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list records: owners: %w", err)
	}

	out := make([]ports.AdminRecord, 0, len(recs))
	for _, r := range recs {
		item := ports.AdminRecord{Record: r}
		if a, ok := owners[r.AccountID]; ok {
			item.Account = &ports.AccountSummary{
				ID:          a.ID,
				Name:        a.Name,
				Email:       a.Email,
				MeterNumber: a.MeterNumber,
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// SetPaymentStatus moves a record to a new payment status. Entering paid stamps
// the payment date; any other status clears it. The write is conditional on
// the status read here, so a concurrent change yields domain.ErrStatusConflict.
func (s *RecordService) SetPaymentStatus(ctx context.Context, principal domain.Principal, id, status string) (*ports.PaymentStatusResult, error) {
	if err := domain.CanManagePayments(principal); err != nil {
		return nil, err
	}
	next, err := domain.ParsePaymentStatus(strings.TrimSpace(status))
	if err != nil {
		return nil, err
	}

	rec, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("set payment status: %w", err)
	}
	previous := rec.PaymentStatus
	if previous == "" {
		previous = domain.PaymentPending
	}
	if err := rec.SetPaymentStatus(next, s.now()); err != nil {
		return nil, err
	}

	updated, err := s.records.UpdatePaymentStatus(ctx, id, previous, rec.PaymentStatus, rec.PaymentDate, rec.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			return nil, domain.ErrRecordNotFound
		case errors.Is(err, domain.ErrStatusConflict):
			return nil, domain.ErrStatusConflict
		}
		return nil, fmt.Errorf("set payment status: %w", err)
	}

	s.publish(ctx, ports.EventPaymentStatusChanged, updated)
	s.log.Info().
		Str("record_id", updated.ID).
		Str("from", string(previous)).
		Str("status", string(updated.PaymentStatus)).
		Str("admin_id", principal.AccountID).
		Msg("payment status updated")
	return &ports.PaymentStatusResult{Record: updated, Previous: previous}, nil
}

// replay returns the record a previously seen idempotency key produced. Lookup
// failures fall through to a normal create.
func (s *RecordService) replay(ctx context.Context, principal domain.Principal, key string) *domain.MeterRecord {
	if key == "" || s.idempotency == nil {
		return nil
	}
	recordID, found, err := s.idempotency.Lookup(ctx, principal.AccountID, key)
	if err != nil {
		s.log.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency lookup failed, creating anyway")
		return nil
	}
	if !found {
		return nil
	}
	rec, err := s.records.FindByID(ctx, recordID)
	if err != nil || rec.AccountID != principal.AccountID {
		return nil
	}
	s.log.Info().Str("idempotency_key", key).Str("record_id", rec.ID).Msg("idempotent replay")
	return rec
}

func (s *RecordService) checkAnomaly(ctx context.Context, rec *domain.MeterRecord) string {
	if s.detector == nil {
		return ""
	}
	recent, err := s.records.Recent(ctx, rec.AccountID, s.cfg.AnomalyWindow)
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", rec.AccountID).Msg("anomaly history unavailable")
		return ""
	}
	history := make([]float64, 0, len(recent))
	for _, r := range recent {
		history = append(history, r.UnitsConsumed)
	}
	return s.detector.Check(rec.UnitsConsumed, history)
}

func (s *RecordService) discardImage(ctx context.Context, ref string) {
	if ref == "" || s.images == nil {
		return
	}
	if err := s.images.Remove(ctx, ref); err != nil {
		s.log.Warn().Err(err).Str("bill_image", ref).Msg("failed to remove orphaned bill image")
	}
}

func (s *RecordService) publish(ctx context.Context, eventType string, rec *domain.MeterRecord) {
	if s.events == nil {
		return
	}
	s.events.Enqueue(ctx, ports.RecordEvent{
		Type:          eventType,
		RecordID:      rec.ID,
		AccountID:     rec.AccountID,
		MeterNumber:   rec.MeterNumber,
		UnitsConsumed: rec.UnitsConsumed,
		TotalAmount:   rec.TotalAmount,
		PaymentStatus: string(rec.PaymentStatus),
		PaymentDate:   rec.PaymentDate,
		DueDate:       rec.DueDate,
		OccurredAt:    s.now().UTC(),
	})
}
