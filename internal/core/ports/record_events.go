package ports

import (
	"context"
	"time"
)

// Record event types published to the message broker.
const (
	EventRecordCreated        = "record.created"
	EventPaymentStatusChanged = "record.payment_status_changed"
)

// RecordEvent is the notification emitted after a record is written.
type RecordEvent struct {
	Type          string     `json:"type"`
	RecordID      string     `json:"record_id"`
	AccountID     string     `json:"account_id"`
	MeterNumber   string     `json:"meter_number,omitempty"`
	UnitsConsumed float64    `json:"units_consumed"`
	TotalAmount   float64    `json:"total_amount"`
	PaymentStatus string     `json:"payment_status"`
	PaymentDate   *time.Time `json:"payment_date,omitempty"`
	DueDate       time.Time  `json:"due_date"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// EventPublisher delivers a single event to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, event RecordEvent) error
}

// EventSink accepts events for asynchronous delivery. Delivery failures never
// fail the request that produced the event.
type EventSink interface {
	Enqueue(ctx context.Context, event RecordEvent)
}
