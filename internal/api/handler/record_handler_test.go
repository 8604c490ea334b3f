package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/powerbill/electricity-records/internal/core/domain"
	"github.com/powerbill/electricity-records/internal/core/ports"
)

func sampleRecord() *domain.MeterRecord {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.MeterRecord{
		ID:              "rec-1",
		AccountID:       "acc-1",
		MeterNumber:     "MTR-1",
		PreviousReading: 100,
		CurrentReading:  150,
		RatePerUnit:     8,
		UnitsConsumed:   50,
		TotalAmount:     400,
		DueDate:         time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		PaymentStatus:   domain.PaymentPending,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func TestRecordHandler_Create_JSON(t *testing.T) {
	var got ports.CreateRecordInput
	stub := &stubRecordService{
		createFn: func(ctx context.Context, p domain.Principal, in ports.CreateRecordInput) (*ports.RecordResult, error) {
			if p != userPrincipal {
				t.Fatalf("unexpected principal: %+v", p)
			}
			got = in
			return &ports.RecordResult{Record: sampleRecord()}, nil
		},
	}
	h := NewRecordHandler(stub)

	body := `{"current_reading":150,"rate_per_unit":"8","due_date":"2024-03-31","remarks":"march"}`
	c, rec := newTestContext(t, http.MethodPost, "/api/records", echo.MIMEApplicationJSON, strings.NewReader(body), userPrincipal)
	c.Request().Header.Set("Idempotency-Key", "k-1")

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/api/records/rec-1" {
		t.Fatalf("unexpected Location: %q", loc)
	}
	if got.CurrentReading != "150" || got.RatePerUnit != "8" || got.DueDate != "2024-03-31" ||
		got.Remarks != "march" || got.IdempotencyKey != "k-1" || got.BillImage != nil {
		t.Fatalf("unexpected input: %+v", got)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["due_date"] != "2024-03-31" || resp["total_amount"] != float64(400) || resp["payment_status"] != "pending" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if v, ok := resp["payment_date"]; !ok || v != nil {
		t.Fatalf("payment_date must be present and null, got %v", v)
	}
	links, _ := resp["_links"].(map[string]any)
	if links["self"] != "/api/records/rec-1" {
		t.Fatalf("unexpected links: %+v", links)
	}
}

func TestRecordHandler_Create_Replay(t *testing.T) {
	stub := &stubRecordService{
		createFn: func(ctx context.Context, p domain.Principal, in ports.CreateRecordInput) (*ports.RecordResult, error) {
			return &ports.RecordResult{Record: sampleRecord(), AlreadyExisted: true}, nil
		},
	}
	h := NewRecordHandler(stub)

	c, rec := newTestContext(t, http.MethodPost, "/api/records", echo.MIMEApplicationJSON,
		strings.NewReader(`{"current_reading":150,"due_date":"2024-03-31"}`), userPrincipal)

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", rec.Code)
	}
}

func TestRecordHandler_Create_MultipartWithImage(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("current_reading", "150.5")
	_ = w.WriteField("due_date", "2024-03-31")
	fw, err := w.CreateFormFile("billImage", "bill.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte("\x89PNG\r\n\x1a\n"))
	_ = w.Close()

	stub := &stubRecordService{
		createFn: func(ctx context.Context, p domain.Principal, in ports.CreateRecordInput) (*ports.RecordResult, error) {
			if in.CurrentReading != "150.5" || in.DueDate != "2024-03-31" {
				t.Fatalf("unexpected input: %+v", in)
			}
			if in.BillImage == nil || in.BillImage.Filename != "bill.png" {
				t.Fatalf("expected bill image upload, got %+v", in.BillImage)
			}
			content, _ := io.ReadAll(in.BillImage.Content)
			if !bytes.HasPrefix(content, []byte("\x89PNG")) {
				t.Fatalf("unexpected image content: %q", content)
			}
			r := sampleRecord()
			r.BillImage = "/uploads/x.png"
			return &ports.RecordResult{Record: r}, nil
		},
	}
	h := NewRecordHandler(stub)

	c, rec := newTestContext(t, http.MethodPost, "/api/records", w.FormDataContentType(), &buf, userPrincipal)
	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp recordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.BillImage != "/uploads/x.png" || resp.Links.BillImage != "/uploads/x.png" {
		t.Fatalf("unexpected bill image links: %+v", resp)
	}
}

func TestRecordHandler_Create_ValidationErrorPassesThrough(t *testing.T) {
	stub := &stubRecordService{
		createFn: func(ctx context.Context, p domain.Principal, in ports.CreateRecordInput) (*ports.RecordResult, error) {
			return nil, domain.NewValidationError("current_reading", domain.ReasonNotGreater, "current reading must be greater than previous reading")
		},
	}
	h := NewRecordHandler(stub)

	c, _ := newTestContext(t, http.MethodPost, "/api/records", echo.MIMEApplicationJSON,
		strings.NewReader(`{"current_reading":"abc","due_date":"2024-03-31"}`), userPrincipal)

	err := h.Create(c)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Reason != domain.ReasonNotGreater {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordHandler_Create_NonNumericJSONIsFieldValidation(t *testing.T) {
	for _, raw := range []string{`true`, `{"value":150}`, `[150]`} {
		t.Run(raw, func(t *testing.T) {
			var got string
			stub := &stubRecordService{
				createFn: func(ctx context.Context, p domain.Principal, in ports.CreateRecordInput) (*ports.RecordResult, error) {
					got = in.CurrentReading
					_, err := domain.ValidateReading(0, in.CurrentReading)
					return nil, err
				},
			}
			h := NewRecordHandler(stub)

			c, _ := newTestContext(t, http.MethodPost, "/api/records", echo.MIMEApplicationJSON,
				strings.NewReader(`{"current_reading":`+raw+`,"due_date":"2024-03-31"}`), userPrincipal)

			err := h.Create(c)
			if got != raw {
				t.Fatalf("raw token must reach the service: want %q, got %q", raw, got)
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != "current_reading" || ve.Reason != domain.ReasonNotANumber {
				t.Fatalf("expected not_a_number on current_reading, got %v", err)
			}
		})
	}
}

func TestRecordHandler_Create_CamelCaseJSON(t *testing.T) {
	var got ports.CreateRecordInput
	stub := &stubRecordService{
		createFn: func(ctx context.Context, p domain.Principal, in ports.CreateRecordInput) (*ports.RecordResult, error) {
			got = in
			return &ports.RecordResult{Record: sampleRecord()}, nil
		},
	}
	h := NewRecordHandler(stub)

	body := `{"currentReading":150,"previousReading":"100","ratePerUnit":8,"dueDate":"2024-03-31","rate_per_unit":"9"}`
	c, _ := newTestContext(t, http.MethodPost, "/api/records", echo.MIMEApplicationJSON, strings.NewReader(body), userPrincipal)

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got.CurrentReading != "150" || got.PreviousReading != "100" || got.DueDate != "2024-03-31" {
		t.Fatalf("camelCase fields not bound: %+v", got)
	}
	if got.RatePerUnit != "9" {
		t.Fatalf("snake_case must win over camelCase, got %q", got.RatePerUnit)
	}
}

func TestRecordHandler_Create_CamelCaseMultipart(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("currentReading", "150.5")
	_ = w.WriteField("previousReading", "100")
	_ = w.WriteField("ratePerUnit", "7.5")
	_ = w.WriteField("dueDate", "2024-03-31")
	_ = w.Close()

	var got ports.CreateRecordInput
	stub := &stubRecordService{
		createFn: func(ctx context.Context, p domain.Principal, in ports.CreateRecordInput) (*ports.RecordResult, error) {
			got = in
			return &ports.RecordResult{Record: sampleRecord()}, nil
		},
	}
	h := NewRecordHandler(stub)

	c, _ := newTestContext(t, http.MethodPost, "/api/records", w.FormDataContentType(), &buf, userPrincipal)
	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got.CurrentReading != "150.5" || got.PreviousReading != "100" || got.RatePerUnit != "7.5" || got.DueDate != "2024-03-31" {
		t.Fatalf("camelCase form fields not bound: %+v", got)
	}
}

func TestRecordHandler_Create_Unauthenticated(t *testing.T) {
	h := NewRecordHandler(&stubRecordService{})

	c, _ := newTestContext(t, http.MethodPost, "/api/records", echo.MIMEApplicationJSON,
		strings.NewReader(`{}`), domain.Principal{})

	if code := httpStatus(h.Create(c)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestRecordHandler_Latest(t *testing.T) {
	t.Run("no records", func(t *testing.T) {
		stub := &stubRecordService{
			latestFn: func(ctx context.Context, p domain.Principal) (*domain.MeterRecord, error) { return nil, nil },
		}
		c, rec := newTestContext(t, http.MethodGet, "/api/records/last", "", nil, userPrincipal)
		if err := NewRecordHandler(stub).Latest(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if strings.TrimSpace(rec.Body.String()) != `{"record":null}` {
			t.Fatalf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("with record", func(t *testing.T) {
		stub := &stubRecordService{
			latestFn: func(ctx context.Context, p domain.Principal) (*domain.MeterRecord, error) { return sampleRecord(), nil },
		}
		c, rec := newTestContext(t, http.MethodGet, "/api/records/last", "", nil, userPrincipal)
		if err := NewRecordHandler(stub).Latest(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		var resp latestRecordResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if resp.Record == nil || resp.Record.CurrentReading != 150 {
			t.Fatalf("unexpected payload: %+v", resp)
		}
	})
}

func TestRecordHandler_Mine(t *testing.T) {
	stub := &stubRecordService{
		mineFn: func(ctx context.Context, p domain.Principal) ([]*domain.MeterRecord, error) {
			second := sampleRecord()
			second.ID = "rec-0"
			return []*domain.MeterRecord{sampleRecord(), second}, nil
		},
	}
	c, rec := newTestContext(t, http.MethodGet, "/api/records/mine", "", nil, userPrincipal)
	if err := NewRecordHandler(stub).Mine(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp listResponse[recordResponse]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Count != 2 || resp.Data[0].ID != "rec-1" || resp.Data[1].ID != "rec-0" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestRecordHandler_Mine_EmptyIsArray(t *testing.T) {
	stub := &stubRecordService{
		mineFn: func(ctx context.Context, p domain.Principal) ([]*domain.MeterRecord, error) { return nil, nil },
	}
	c, rec := newTestContext(t, http.MethodGet, "/api/records/mine", "", nil, userPrincipal)
	if err := NewRecordHandler(stub).Mine(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"data":[],"count":0}` {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestRecordHandler_Get(t *testing.T) {
	stub := &stubRecordService{
		getFn: func(ctx context.Context, p domain.Principal, id string) (*domain.MeterRecord, error) {
			if id != "rec-1" {
				return nil, domain.ErrRecordNotFound
			}
			return sampleRecord(), nil
		},
	}
	h := NewRecordHandler(stub)

	c, rec := newTestContext(t, http.MethodGet, "/api/records/rec-1", "", nil, userPrincipal)
	c.SetParamNames("id")
	c.SetParamValues("rec-1")
	if err := h.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, _ = newTestContext(t, http.MethodGet, "/api/records/other", "", nil, userPrincipal)
	c.SetParamNames("id")
	c.SetParamValues("other")
	if err := h.Get(c); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}
