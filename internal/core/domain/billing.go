package domain

import "math"

// Charge is the derived part of a meter record.
type Charge struct {
	Units  float64
	Amount float64
}

// CalculateCharge derives consumed units and the amount owed. It is pure: the
// same inputs always produce the same Charge. No rounding is applied.
func CalculateCharge(previousReading, currentReading, ratePerUnit float64) Charge {
	units := currentReading - previousReading
	return Charge{
		Units:  units,
		Amount: units * ratePerUnit,
	}
}

// Validate rejects charges that overflow float64. Such records cannot be
// rendered as JSON, so they must never be stored.
func (c Charge) Validate() error {
	if math.IsNaN(c.Units) || math.IsInf(c.Units, 0) {
		return newValidationError("current_reading", ReasonTooLarge,
			"current_reading is too large to bill")
	}
	if math.IsNaN(c.Amount) || math.IsInf(c.Amount, 0) {
		return newValidationError("rate_per_unit", ReasonTooLarge,
			"rate_per_unit times units consumed is too large to bill")
	}
	return nil
}
