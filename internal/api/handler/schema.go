package handler

import (
	"bytes"
	"encoding/json"
)

// --- Request types ---

type registerRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	MeterNumber string `json:"meter_number" validate:"required"`
	Address     string `json:"address" validate:"required"`
	Phone       string `json:"phone" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// numberField accepts any JSON value and keeps the raw text so that malformed
// input is reported by the reading validator instead of the binder. Strings
// are unquoted; booleans, objects and arrays are kept verbatim and fail to parse.
type numberField string

func (n *numberField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*n = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = numberField(s)
	default:
		*n = numberField(b)
	}
	return nil
}

// createRecordRequest binds from JSON, urlencoded or multipart bodies. Every
// field also accepts its camelCase spelling; snake_case wins when both are sent.
type createRecordRequest struct {
	CurrentReading  numberField `json:"current_reading" form:"current_reading"`
	PreviousReading numberField `json:"previous_reading" form:"previous_reading"`
	RatePerUnit     numberField `json:"rate_per_unit" form:"rate_per_unit"`
	DueDate         string      `json:"due_date" form:"due_date"`
	Remarks         string      `json:"remarks" form:"remarks"`

	CurrentReadingAlt  numberField `json:"currentReading" form:"currentReading" swaggerignore:"true"`
	PreviousReadingAlt numberField `json:"previousReading" form:"previousReading" swaggerignore:"true"`
	RatePerUnitAlt     numberField `json:"ratePerUnit" form:"ratePerUnit" swaggerignore:"true"`
	DueDateAlt         string      `json:"dueDate" form:"dueDate" swaggerignore:"true"`
}

type paymentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// --- Response types ---

type accountResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	MeterNumber string `json:"meter_number"`
	Address     string `json:"address,omitempty"`
	Phone       string `json:"phone,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type authResponse struct {
	Token   string           `json:"token"`
	Account *accountResponse `json:"account"`
}

type recordLinks struct {
	Self      string `json:"self"`
	BillImage string `json:"bill_image,omitempty"`
}

type recordResponse struct {
	ID              string      `json:"id"`
	AccountID       string      `json:"account_id"`
	MeterNumber     string      `json:"meter_number"`
	PreviousReading float64     `json:"previous_reading"`
	CurrentReading  float64     `json:"current_reading"`
	RatePerUnit     float64     `json:"rate_per_unit"`
	UnitsConsumed   float64     `json:"units_consumed"`
	TotalAmount     float64     `json:"total_amount"`
	DueDate         string      `json:"due_date"`
	PaymentStatus   string      `json:"payment_status"`
	PaymentDate     *string     `json:"payment_date"`
	BillImage       string      `json:"bill_image,omitempty"`
	Remarks         string      `json:"remarks,omitempty"`
	Anomaly         string      `json:"anomaly,omitempty"`
	CreatedAt       string      `json:"created_at"`
	UpdatedAt       string      `json:"updated_at"`
	Links           recordLinks `json:"_links"`
}

type accountSummaryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	MeterNumber string `json:"meter_number"`
}

type adminRecordResponse struct {
	recordResponse
	Account *accountSummaryResponse `json:"account"`
}

type listResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// latestRecordResponse wraps the latest record; Record is null when the
// account has no records yet.
type latestRecordResponse struct {
	Record *recordResponse `json:"record"`
}
