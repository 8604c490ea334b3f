package handler

import (
	"time"

	"github.com/powerbill/electricity-records/internal/core/domain"
	"github.com/powerbill/electricity-records/internal/core/ports"
)

const dateLayout = "2006-01-02"

// --- Request → Service input ---

func toCreateInput(req createRecordRequest, idempotencyKey string, image *ports.BillImageUpload) ports.CreateRecordInput {
	return ports.CreateRecordInput{
		CurrentReading:  firstSet(string(req.CurrentReading), string(req.CurrentReadingAlt)),
		PreviousReading: firstSet(string(req.PreviousReading), string(req.PreviousReadingAlt)),
		RatePerUnit:     firstSet(string(req.RatePerUnit), string(req.RatePerUnitAlt)),
		DueDate:         firstSet(req.DueDate, req.DueDateAlt),
		Remarks:         req.Remarks,
		IdempotencyKey:  idempotencyKey,
		BillImage:       image,
	}
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func toRegisterInput(req registerRequest) ports.RegisterInput {
	return ports.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		MeterNumber: req.MeterNumber,
		Address:     req.Address,
		Phone:       req.Phone,
	}
}

// --- Service result → HTTP response ---

func toAccountResponse(a *domain.Account) *accountResponse {
	if a == nil {
		return nil
	}
	return &accountResponse{
		ID:          a.ID,
		Name:        a.Name,
		Email:       a.Email,
		Role:        a.Role.String(),
		MeterNumber: a.MeterNumber,
		Address:     a.Address,
		Phone:       a.Phone,
		CreatedAt:   formatTime(a.CreatedAt),
	}
}

func toRecordResponse(r *domain.MeterRecord) recordResponse {
	resp := recordResponse{
		ID:              r.ID,
		AccountID:       r.AccountID,
		MeterNumber:     r.MeterNumber,
		PreviousReading: r.PreviousReading,
		CurrentReading:  r.CurrentReading,
		RatePerUnit:     r.RatePerUnit,
		UnitsConsumed:   r.UnitsConsumed,
		TotalAmount:     r.TotalAmount,
		DueDate:         r.DueDate.UTC().Format(dateLayout),
		PaymentStatus:   string(r.PaymentStatus),
		BillImage:       r.BillImage,
		Remarks:         r.Remarks,
		Anomaly:         r.Anomaly,
		CreatedAt:       formatTime(r.CreatedAt),
		UpdatedAt:       formatTime(r.UpdatedAt),
		Links: recordLinks{
			Self:      "/api/records/" + r.ID,
			BillImage: r.BillImage,
		},
	}
	if r.PaymentDate != nil {
		paid := formatTime(*r.PaymentDate)
		resp.PaymentDate = &paid
	}
	return resp
}

func toRecordList(recs []*domain.MeterRecord) listResponse[recordResponse] {
	out := make([]recordResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRecordResponse(r))
	}
	return listResponse[recordResponse]{Data: out, Count: len(out)}
}

func toAdminRecordList(items []ports.AdminRecord) listResponse[adminRecordResponse] {
	out := make([]adminRecordResponse, 0, len(items))
	for _, it := range items {
		resp := adminRecordResponse{recordResponse: toRecordResponse(it.Record)}
		if it.Account != nil {
			resp.Account = &accountSummaryResponse{
				ID:          it.Account.ID,
				Name:        it.Account.Name,
				Email:       it.Account.Email,
				MeterNumber: it.Account.MeterNumber,
			}
		}
		out = append(out, resp)
	}
	return listResponse[adminRecordResponse]{Data: out, Count: len(out)}
}

func toAccountList(accounts []*domain.Account) listResponse[*accountResponse] {
	out := make([]*accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	return listResponse[*accountResponse]{Data: out, Count: len(out)}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
