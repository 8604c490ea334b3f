package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatcher metrics, registered with the default registry and served on
// /metrics next to the API metrics.
const metricsNamespace = "electricity"

// eventsPublishedTotal counts record events handed to the broker.
// Labels:
//   - type: event type (e.g. "record.created")
//   - result: "published" or "failed"
var eventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "events_published_total",
		Help:      "Total number of record events published, by type and result.",
	},
	[]string{"type", "result"},
)

// eventsDroppedTotal counts events discarded because a worker queue was full.
var eventsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "events_dropped_total",
		Help:      "Total number of record events dropped due to a full dispatcher queue.",
	},
)

// eventsQueueDepth tracks the current number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var eventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "events_queue_depth",
		Help:      "Current number of events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// eventPublishDuration measures how long a single publish to the broker takes.
var eventPublishDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "event_publish_duration_seconds",
		Help:      "Duration of a record event publish, from dequeue to broker ack.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"type"},
)
