package domain

import "time"

// PaymentTransition computes the stored state after moving to next at time at.
// Entering paid stamps the payment date; any other state clears it.
func PaymentTransition(next PaymentStatus, at time.Time) (PaymentStatus, *time.Time) {
	if next == PaymentPaid {
		paidAt := at.UTC()
		return next, &paidAt
	}
	return next, nil
}

// SetPaymentStatus applies a payment status transition to the record after
// checking it against the workflow.
func (r *MeterRecord) SetPaymentStatus(next PaymentStatus, at time.Time) error {
	current := r.PaymentStatus
	if current == "" {
		current = PaymentPending
	}
	if !current.CanTransitionTo(next) {
		return newValidationError("status", ReasonInvalidMove,
			"cannot move payment status from %s to %s", current, next)
	}
	r.PaymentStatus, r.PaymentDate = PaymentTransition(next, at)
	r.UpdatedAt = at.UTC()
	return nil
}
