package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/powerbill/electricity-records/internal/core/domain"
	"github.com/powerbill/electricity-records/internal/core/ports"
)

var discardLogger = zerolog.Nop()

// ---------------------------------------------------------------------------
// In-memory stub account repository
// ---------------------------------------------------------------------------

type stubAccountRepo struct {
	accounts map[string]*domain.Account
	seq      int
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{accounts: make(map[string]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

func (r *stubAccountRepo) Create(_ context.Context, account *domain.Account) (*domain.Account, error) {
	for _, a := range r.accounts {
		if a.Email == account.Email || a.MeterNumber == account.MeterNumber {
			return nil, domain.ErrAccountExists
		}
	}
	copy := cloneAccount(account)
	if copy.ID == "" {
		r.seq++
		copy.ID = fmt.Sprintf("acc-%d", r.seq)
	}
	r.accounts[copy.ID] = cloneAccount(copy)
	return copy, nil
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	for _, a := range r.accounts {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *stubAccountRepo) FindByIDs(_ context.Context, ids []string) (map[string]*domain.Account, error) {
	out := make(map[string]*domain.Account, len(ids))
	for _, id := range ids {
		if a, ok := r.accounts[id]; ok {
			out[id] = cloneAccount(a)
		}
	}
	return out, nil
}

func (r *stubAccountRepo) List(_ context.Context) ([]*domain.Account, error) {
	out := make([]*domain.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubAccountRepo) seed(id string, role domain.Role, meter string) *domain.Account {
	a := &domain.Account{
		ID:          id,
		Name:        "Account " + id,
		Email:       id + "@example.com",
		Role:        role,
		MeterNumber: meter,
	}
	r.accounts[id] = a
	return cloneAccount(a)
}

// ---------------------------------------------------------------------------
// In-memory stub record repository
// ---------------------------------------------------------------------------

type stubRecordRepo struct {
	records   []*domain.MeterRecord // insertion order = creation order
	createErr error
	latestErr error
	seq       int
	// beforeUpdate runs against the stored record just before a conditional
	// status write, standing in for a concurrent writer.
	beforeUpdate func(*domain.MeterRecord)
}

func newStubRecordRepo() *stubRecordRepo {
	return &stubRecordRepo{}
}

func cloneRecord(r *domain.MeterRecord) *domain.MeterRecord {
	clone := *r
	if r.PaymentDate != nil {
		d := *r.PaymentDate
		clone.PaymentDate = &d
	}
	return &clone
}

func (r *stubRecordRepo) Create(_ context.Context, rec *domain.MeterRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.seq++
	rec.ID = fmt.Sprintf("rec-%d", r.seq)
	r.records = append(r.records, cloneRecord(rec))
	return nil
}

func (r *stubRecordRepo) newestFirst(match func(*domain.MeterRecord) bool) []*domain.MeterRecord {
	var out []*domain.MeterRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		if match(r.records[i]) {
			out = append(out, cloneRecord(r.records[i]))
		}
	}
	return out
}

func (r *stubRecordRepo) Latest(_ context.Context, accountID string) (*domain.MeterRecord, error) {
	if r.latestErr != nil {
		return nil, r.latestErr
	}
	recs := r.newestFirst(func(m *domain.MeterRecord) bool { return m.AccountID == accountID })
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

func (r *stubRecordRepo) Recent(_ context.Context, accountID string, limit int) ([]*domain.MeterRecord, error) {
	recs := r.newestFirst(func(m *domain.MeterRecord) bool { return m.AccountID == accountID })
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (r *stubRecordRepo) ListByAccount(_ context.Context, accountID string) ([]*domain.MeterRecord, error) {
	return r.newestFirst(func(m *domain.MeterRecord) bool { return m.AccountID == accountID }), nil
}

func (r *stubRecordRepo) List(_ context.Context, f ports.ListRecordsFilter) ([]*domain.MeterRecord, error) {
	return r.newestFirst(func(m *domain.MeterRecord) bool {
		if f.AccountID != "" && m.AccountID != f.AccountID {
			return false
		}
		return f.Status == "" || m.PaymentStatus == f.Status
	}), nil
}

func (r *stubRecordRepo) FindByID(_ context.Context, id string) (*domain.MeterRecord, error) {
	for _, m := range r.records {
		if m.ID == id {
			return cloneRecord(m), nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (r *stubRecordRepo) UpdatePaymentStatus(_ context.Context, id string, from, to domain.PaymentStatus, paymentDate *time.Time, updatedAt time.Time) (*domain.MeterRecord, error) {
	for _, m := range r.records {
		if m.ID == id {
			if r.beforeUpdate != nil {
				r.beforeUpdate(m)
			}
			stored := m.PaymentStatus
			if stored == "" {
				stored = domain.PaymentPending
			}
			if stored != from {
				return nil, domain.ErrStatusConflict
			}
			m.PaymentStatus = to
			m.PaymentDate = paymentDate
			m.UpdatedAt = updatedAt
			return cloneRecord(m), nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

// seed stores a record directly, bypassing the service.
func (r *stubRecordRepo) seed(accountID string, prev, curr float64, status domain.PaymentStatus) *domain.MeterRecord {
	rec := &domain.MeterRecord{
		AccountID:       accountID,
		PreviousReading: prev,
		CurrentReading:  curr,
		RatePerUnit:     8,
		PaymentStatus:   status,
		DueDate:         time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
	}
	rec.ApplyCharge(domain.CalculateCharge(prev, curr, 8))
	_ = r.Create(context.Background(), rec)
	return rec
}

// ---------------------------------------------------------------------------
// Collaborator stubs
// ---------------------------------------------------------------------------

type stubIdempotencyStore struct {
	keys      map[string]string
	lookupErr error
}

func newStubIdempotencyStore() *stubIdempotencyStore {
	return &stubIdempotencyStore{keys: make(map[string]string)}
}

func (s *stubIdempotencyStore) Lookup(_ context.Context, accountID, key string) (string, bool, error) {
	if s.lookupErr != nil {
		return "", false, s.lookupErr
	}
	id, ok := s.keys[accountID+"/"+key]
	return id, ok, nil
}

func (s *stubIdempotencyStore) Remember(_ context.Context, accountID, key, recordID string) error {
	s.keys[accountID+"/"+key] = recordID
	return nil
}

type stubImageStore struct {
	saved   map[string][]byte
	removed []string
	saveErr error
	seq     int
}

func newStubImageStore() *stubImageStore {
	return &stubImageStore{saved: make(map[string][]byte)}
}

func (s *stubImageStore) Save(_ context.Context, upload ports.BillImageUpload) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	data, err := io.ReadAll(upload.Content)
	if err != nil {
		return "", errors.Join(domain.ErrBillImageUpload, err)
	}
	s.seq++
	ref := fmt.Sprintf("/uploads/img-%d.png", s.seq)
	s.saved[ref] = data
	return ref, nil
}

func (s *stubImageStore) Remove(_ context.Context, ref string) error {
	s.removed = append(s.removed, ref)
	delete(s.saved, ref)
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []ports.RecordEvent
}

func (s *recordingSink) Enqueue(_ context.Context, event ports.RecordEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}
