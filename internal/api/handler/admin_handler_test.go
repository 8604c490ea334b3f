package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/powerbill/electricity-records/internal/core/domain"
	"github.com/powerbill/electricity-records/internal/core/ports"
)

func TestAdminHandler_Records(t *testing.T) {
	var gotStatus string
	stub := &stubRecordService{
		adminFn: func(ctx context.Context, p domain.Principal, status string) ([]ports.AdminRecord, error) {
			if p != adminPrincipal {
				t.Fatalf("unexpected principal: %+v", p)
			}
			gotStatus = status
			return []ports.AdminRecord{
				{Record: sampleRecord(), Account: &ports.AccountSummary{ID: "acc-1", Name: "Alice", Email: "a@example.com", MeterNumber: "MTR-1"}},
				{Record: sampleRecord()},
			}, nil
		},
	}
	h := NewAdminHandler(stub, &stubAuthService{})

	c, rec := newTestContext(t, http.MethodGet, "/api/admin/records?status=pending", "", nil, adminPrincipal)
	if err := h.Records(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if gotStatus != "pending" {
		t.Fatalf("expected status filter to be forwarded, got %q", gotStatus)
	}

	var resp struct {
		Data []map[string]any `json:"data"`
		Count int             `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 records, got %d", resp.Count)
	}
	first := resp.Data[0]
	if first["id"] != "rec-1" || first["units_consumed"] != float64(50) {
		t.Fatalf("record fields must be flattened: %+v", first)
	}
	owner, ok := first["account"].(map[string]any)
	if !ok || owner["name"] != "Alice" || owner["meter_number"] != "MTR-1" {
		t.Fatalf("unexpected owner: %+v", first["account"])
	}
	if resp.Data[1]["account"] != nil {
		t.Fatalf("missing owner must render as null, got %v", resp.Data[1]["account"])
	}
}

func TestAdminHandler_Records_Forbidden(t *testing.T) {
	stub := &stubRecordService{
		adminFn: func(ctx context.Context, p domain.Principal, status string) ([]ports.AdminRecord, error) {
			return nil, domain.ErrForbidden
		},
	}
	h := NewAdminHandler(stub, &stubAuthService{})

	c, _ := newTestContext(t, http.MethodGet, "/api/admin/records", "", nil, userPrincipal)
	if err := h.Records(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAdminHandler_SetPaymentStatus(t *testing.T) {
	paidAt := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	stub := &stubRecordService{
		getFn: func(ctx context.Context, p domain.Principal, id string) (*domain.MeterRecord, error) {
			t.Fatalf("status update must not read the record separately")
			return nil, nil
		},
		setStatusFn: func(ctx context.Context, p domain.Principal, id, status string) (*ports.PaymentStatusResult, error) {
			if id != "rec-1" || status != "paid" {
				t.Fatalf("unexpected args: %s %s", id, status)
			}
			r := sampleRecord()
			r.PaymentStatus = domain.PaymentPaid
			r.PaymentDate = &paidAt
			return &ports.PaymentStatusResult{Record: r, Previous: domain.PaymentPending}, nil
		},
	}
	h := NewAdminHandler(stub, &stubAuthService{})

	c, rec := newTestContext(t, http.MethodPut, "/api/admin/records/rec-1/payment", echo.MIMEApplicationJSON,
		strings.NewReader(`{"status":"paid"}`), adminPrincipal)
	c.SetParamNames("id")
	c.SetParamValues("rec-1")

	if err := h.SetPaymentStatus(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp recordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.PaymentStatus != "paid" || resp.PaymentDate == nil || *resp.PaymentDate != "2024-03-15T12:00:00Z" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestAdminHandler_SetPaymentStatus_MissingStatus(t *testing.T) {
	stub := &stubRecordService{
		setStatusFn: func(ctx context.Context, p domain.Principal, id, status string) (*ports.PaymentStatusResult, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h := NewAdminHandler(stub, &stubAuthService{})

	c, _ := newTestContext(t, http.MethodPut, "/api/admin/records/rec-1/payment", echo.MIMEApplicationJSON,
		strings.NewReader(`{}`), adminPrincipal)
	c.SetParamNames("id")
	c.SetParamValues("rec-1")

	err := h.SetPaymentStatus(c)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "status" || ve.Reason != domain.ReasonRequired {
		t.Fatalf("expected required status error, got %v", err)
	}
}

func TestAdminHandler_SetPaymentStatus_NotFound(t *testing.T) {
	stub := &stubRecordService{
		setStatusFn: func(ctx context.Context, p domain.Principal, id, status string) (*ports.PaymentStatusResult, error) {
			return nil, domain.ErrRecordNotFound
		},
	}
	h := NewAdminHandler(stub, &stubAuthService{})

	c, _ := newTestContext(t, http.MethodPut, "/api/admin/records/nope/payment", echo.MIMEApplicationJSON,
		strings.NewReader(`{"status":"paid"}`), adminPrincipal)
	c.SetParamNames("id")
	c.SetParamValues("nope")

	if err := h.SetPaymentStatus(c); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestAdminHandler_SetPaymentStatus_Conflict(t *testing.T) {
	stub := &stubRecordService{
		setStatusFn: func(ctx context.Context, p domain.Principal, id, status string) (*ports.PaymentStatusResult, error) {
			return nil, domain.ErrStatusConflict
		},
	}
	h := NewAdminHandler(stub, &stubAuthService{})

	c, _ := newTestContext(t, http.MethodPut, "/api/admin/records/rec-1/payment", echo.MIMEApplicationJSON,
		strings.NewReader(`{"status":"paid"}`), adminPrincipal)
	c.SetParamNames("id")
	c.SetParamValues("rec-1")

	if err := h.SetPaymentStatus(c); !errors.Is(err, domain.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
}

func TestAdminHandler_Users(t *testing.T) {
	stub := &stubAuthService{
		listFn: func(ctx context.Context, p domain.Principal) ([]*domain.Account, error) {
			return []*domain.Account{
				{ID: "acc-1", Name: "Alice", Role: domain.RoleUser},
				{ID: "adm-1", Name: "Root", Role: domain.RoleAdmin},
			}, nil
		},
	}
	h := NewAdminHandler(&stubRecordService{}, stub)

	c, rec := newTestContext(t, http.MethodGet, "/api/admin/users", "", nil, adminPrincipal)
	if err := h.Users(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp listResponse[accountResponse]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Count != 2 || resp.Data[1].Role != "admin" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}
