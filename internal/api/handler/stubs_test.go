package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/powerbill/electricity-records/internal/api/middleware"
	"github.com/powerbill/electricity-records/internal/core/domain"
	"github.com/powerbill/electricity-records/internal/core/ports"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, input ports.RegisterInput) (string, *domain.Account, error)
	loginFn    func(ctx context.Context, email, password string) (string, *domain.Account, error)
	currentFn  func(ctx context.Context, p domain.Principal) (*domain.Account, error)
	listFn     func(ctx context.Context, p domain.Principal) ([]*domain.Account, error)
}

func (s *stubAuthService) Register(ctx context.Context, input ports.RegisterInput) (string, *domain.Account, error) {
	return s.registerFn(ctx, input)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (string, *domain.Account, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) CurrentAccount(ctx context.Context, p domain.Principal) (*domain.Account, error) {
	return s.currentFn(ctx, p)
}

func (s *stubAuthService) ListAccounts(ctx context.Context, p domain.Principal) ([]*domain.Account, error) {
	return s.listFn(ctx, p)
}

type stubRecordService struct {
	createFn    func(ctx context.Context, p domain.Principal, in ports.CreateRecordInput) (*ports.RecordResult, error)
	latestFn    func(ctx context.Context, p domain.Principal) (*domain.MeterRecord, error)
	mineFn      func(ctx context.Context, p domain.Principal) ([]*domain.MeterRecord, error)
	getFn       func(ctx context.Context, p domain.Principal, id string) (*domain.MeterRecord, error)
	adminFn     func(ctx context.Context, p domain.Principal, status string) ([]ports.AdminRecord, error)
	setStatusFn func(ctx context.Context, p domain.Principal, id, status string) (*ports.PaymentStatusResult, error)
}

func (s *stubRecordService) CreateRecord(ctx context.Context, p domain.Principal, in ports.CreateRecordInput) (*ports.RecordResult, error) {
	return s.createFn(ctx, p, in)
}

func (s *stubRecordService) LatestRecord(ctx context.Context, p domain.Principal) (*domain.MeterRecord, error) {
	return s.latestFn(ctx, p)
}

func (s *stubRecordService) MyRecords(ctx context.Context, p domain.Principal) ([]*domain.MeterRecord, error) {
	return s.mineFn(ctx, p)
}

func (s *stubRecordService) GetRecord(ctx context.Context, p domain.Principal, id string) (*domain.MeterRecord, error) {
	return s.getFn(ctx, p, id)
}

func (s *stubRecordService) AdminRecords(ctx context.Context, p domain.Principal, status string) ([]ports.AdminRecord, error) {
	return s.adminFn(ctx, p, status)
}

func (s *stubRecordService) SetPaymentStatus(ctx context.Context, p domain.Principal, id, status string) (*ports.PaymentStatusResult, error) {
	return s.setStatusFn(ctx, p, id, status)
}

var (
	userPrincipal  = domain.Principal{AccountID: "acc-1", Role: domain.RoleUser}
	adminPrincipal = domain.Principal{AccountID: "adm-1", Role: domain.RoleAdmin}
)

// newTestContext builds an echo context with the validator installed and, when
// p is authenticated, the principal Auth would have injected.
func newTestContext(t *testing.T, method, target, contentType string, body io.Reader, p domain.Principal) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if p.Authenticated() {
		middleware.WithPrincipal(c, p)
	}
	return c, rec
}

// httpStatus returns the status carried by an *echo.HTTPError, or 0.
func httpStatus(err error) int {
	he, ok := err.(*echo.HTTPError)
	if !ok {
		return 0
	}
	return he.Code
}
