// Package metrics defines and registers the custom Prometheus metrics of the
// electricity records API handlers. Event dispatch metrics live with the
// dispatcher in the queue package.
//
// Metrics are registered with the default Prometheus registry on package init
// through promauto and exposed by the router on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "electricity"

// ── Record metrics ────────────────────────────────────────────────────────────

// RecordsCreatedTotal counts newly created meter records.
// Label:
//   - result: "created", "replayed" (idempotent hit) or "rejected" (validation failure)
var RecordsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_created_total",
		Help:      "Total number of meter record submissions, by outcome.",
	},
	[]string{"result"},
)

// UnitsBilledTotal accumulates consumed units across all created records.
var UnitsBilledTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "units_billed_total",
		Help:      "Total electricity units billed across all created records.",
	},
)

// AnomaliesFlaggedTotal counts records that carried a consumption anomaly note.
var AnomaliesFlaggedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "anomalies_flagged_total",
		Help:      "Total number of records flagged with a consumption spike.",
	},
)

// PaymentTransitionsTotal counts admin payment status changes.
// Labels:
//   - from: the previous payment status
//   - to: the new payment status
var PaymentTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_transitions_total",
		Help:      "Total number of payment status transitions, by source and target status.",
	},
	[]string{"from", "to"},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts register and login attempts.
// Labels:
//   - action: "register" or "login"
//   - result: "success" or "failure"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of authentication attempts, by action and result.",
	},
	[]string{"action", "result"},
)
