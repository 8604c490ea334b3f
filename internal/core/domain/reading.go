package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Accepted due date layouts, most specific last.
var dueDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
}

// ParseNumber parses a numeric form value. Empty and non-finite input are
// reported as validation failures on field.
func ParseNumber(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, newValidationError(field, ReasonRequired, "%s is required", field)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, newValidationError(field, ReasonNotANumber, "%s must be a number", field)
	}
	return v, nil
}

// ValidateReading checks a submitted current reading against the previous one.
// It succeeds only when the value is present, numeric, > 0 and > previousReading.
func ValidateReading(previousReading float64, rawCurrent string) (float64, error) {
	current, err := ParseNumber("current_reading", rawCurrent)
	if err != nil {
		return 0, err
	}
	if current <= 0 {
		return 0, newValidationError("current_reading", ReasonNonPositive,
			"current_reading must be greater than 0")
	}
	if current <= previousReading {
		return 0, newValidationError("current_reading", ReasonNotGreater,
			"current_reading must be greater than previous reading (%g)", previousReading)
	}
	return current, nil
}

// ParseDueDate parses a required due date.
func ParseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, newValidationError("due_date", ReasonRequired, "due_date is required")
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, newValidationError("due_date", ReasonInvalidDate,
		"due_date must be a date (YYYY-MM-DD) or RFC3339 timestamp")
}

// ValidateSubmission validates a complete reading submission: the current
// reading against previousReading, then the due date.
func ValidateSubmission(previousReading float64, rawCurrent, rawDueDate string) (float64, time.Time, error) {
	current, err := ValidateReading(previousReading, rawCurrent)
	if err != nil {
		return 0, time.Time{}, err
	}
	due, err := ParseDueDate(rawDueDate)
	if err != nil {
		return 0, time.Time{}, err
	}
	return current, due, nil
}

// ParseInitialReading parses the externally supplied previous reading of an
// account's first record. Empty input defaults to 0.
func ParseInitialReading(raw string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	v, err := ParseNumber("previous_reading", raw)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, newValidationError("previous_reading", ReasonNegative,
			"previous_reading must not be negative")
	}
	return v, nil
}

// ParseRate parses an optional rate per unit, falling back to defaultRate.
func ParseRate(raw string, defaultRate float64) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultRate, nil
	}
	v, err := ParseNumber("rate_per_unit", raw)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, newValidationError("rate_per_unit", ReasonNonPositive,
			"rate_per_unit must be greater than 0")
	}
	return v, nil
}
