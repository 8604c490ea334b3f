package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/powerbill/electricity-records/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	publishTimeout = 5 * time.Second
)

// Dispatcher routes record events to a fixed set of workers using consistent
// hashing on the account ID, guaranteeing per-account event ordering.
type Dispatcher struct {
	workers   []chan ports.RecordEvent
	publisher ports.EventPublisher
	log       zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, publisher ports.EventPublisher, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan ports.RecordEvent, numWorkers),
		publisher: publisher,
		log:       log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.RecordEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers drain their queue and exit
// after Stop.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Stop closes the worker queues and waits for pending events to be published.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Enqueue implements ports.EventSink. It never blocks: when the worker queue
// is full, or the dispatcher is stopped, the event is dropped and counted.
func (d *Dispatcher) Enqueue(_ context.Context, event ports.RecordEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		eventsDroppedTotal.Inc()
		return
	}

	idx := d.shardIndex(event.AccountID)
	select {
	case d.workers[idx] <- event:
		eventsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		eventsDroppedTotal.Inc()
		d.log.Warn().
			Str("type", event.Type).
			Str("record_id", event.RecordID).
			Int("worker_id", idx).
			Msg("event queue full, dropping event")
	}
}

// shardIndex maps an account ID deterministically to a worker index.
func (d *Dispatcher) shardIndex(accountID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(accountID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.RecordEvent) {
	defer d.wg.Done()
	label := strconv.Itoa(id)

	for event := range ch {
		eventsQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
		d.publish(ctx, id, event)
	}
}

func (d *Dispatcher) publish(ctx context.Context, workerID int, event ports.RecordEvent) {
	// Outlive request cancellation so queued events still drain on shutdown.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	start := time.Now()
	err := d.publisher.Publish(pubCtx, event)
	eventPublishDuration.WithLabelValues(event.Type).Observe(time.Since(start).Seconds())

	if err != nil {
		eventsPublishedTotal.WithLabelValues(event.Type, "failed").Inc()
		d.log.Error().Err(err).
			Str("type", event.Type).
			Str("record_id", event.RecordID).
			Int("worker_id", workerID).
			Msg("event publish failed")
		return
	}
	eventsPublishedTotal.WithLabelValues(event.Type, "published").Inc()
}
