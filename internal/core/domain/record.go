package domain

import "time"

// PaymentStatus represents the billing state of a meter record.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentOverdue PaymentStatus = "overdue"
)

// validTransitions is administratively driven: every state may move to every state.
var validTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPending, PaymentPaid, PaymentOverdue},
	PaymentPaid:    {PaymentPending, PaymentPaid, PaymentOverdue},
	PaymentOverdue: {PaymentPending, PaymentPaid, PaymentOverdue},
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(s)
	if _, ok := validTransitions[status]; !ok {
		return "", newValidationError("status", ReasonInvalidStatus,
			"status must be one of: pending, paid, overdue")
	}
	return status, nil
}

// CanTransitionTo reports whether a transition from the current status to next is valid.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MeterRecord is one billing cycle's reading submission and its derived charge.
type MeterRecord struct {
	ID              string        `json:"id"`
	AccountID       string        `json:"account_id"`
	MeterNumber     string        `json:"meter_number"`
	PreviousReading float64       `json:"previous_reading"`
	CurrentReading  float64       `json:"current_reading"`
	RatePerUnit     float64       `json:"rate_per_unit"`
	UnitsConsumed   float64       `json:"units_consumed"`
	TotalAmount     float64       `json:"total_amount"`
	DueDate         time.Time     `json:"due_date"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentDate     *time.Time    `json:"payment_date,omitempty"`
	BillImage       string        `json:"bill_image,omitempty"`
	Remarks         string        `json:"remarks,omitempty"`
	Anomaly         string        `json:"anomaly,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ApplyCharge overwrites the derived fields from the record's readings and rate.
func (r *MeterRecord) ApplyCharge(c Charge) {
	r.UnitsConsumed = c.Units
	r.TotalAmount = c.Amount
}
