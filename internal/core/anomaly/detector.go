// Package anomaly flags unusual consumption on newly created meter records.
package anomaly

import "fmt"

// Detector compares a record's consumption with the mean of earlier records.
type Detector struct {
	spikeThreshold float64
	minDataPoints  int
}

// NewDetector returns a Detector. A non-positive threshold disables detection.
func NewDetector(spikeThreshold float64, minDataPoints int) *Detector {
	if minDataPoints < 1 {
		minDataPoints = 1
	}
	return &Detector{spikeThreshold: spikeThreshold, minDataPoints: minDataPoints}
}

// Check returns a human-readable note when units exceeds threshold times the
// mean of history, or "" when the consumption looks normal or history is short.
func (d *Detector) Check(units float64, history []float64) string {
	if d == nil || d.spikeThreshold <= 0 || len(history) < d.minDataPoints {
		return ""
	}

	sum := 0.0
	for _, v := range history {
		sum += v
	}
	mean := sum / float64(len(history))

	if mean > 0 && units > d.spikeThreshold*mean {
		return fmt.Sprintf("consumption spike: %.2f units exceeds %.1fx average of %.2f over last %d records",
			units, d.spikeThreshold, mean, len(history))
	}
	return ""
}
