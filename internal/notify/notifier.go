// Package notify delivers job lifecycle events to a webhook as CloudEvents.
// Events are queued in a bounded channel and delivered by a worker pool with
// retries and a circuit breaker. Status events are time-sensitive: when the
// queue is full or the circuit is open they are dropped, not replayed, since
// a later event supersedes them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"geotask/pkg/circuitbreaker"
	"geotask/pkg/cloudevent"
)

// ErrQueueFull is returned when the notifier's queue is full and the event is dropped.
var ErrQueueFull = errors.New("notifier queue full, event dropped")

// MetricsRecorder is an optional interface for recording notifier metrics.
type MetricsRecorder interface {
	RecordNotificationDelivered(ctx context.Context, durationSeconds float64)
	RecordNotificationFailed(ctx context.Context)
	RecordNotificationDropped(ctx context.Context)
	RecordNotificationQueueSize(ctx context.Context, size int64)
}

// Stats holds notifier statistics.
type Stats struct {
	QueueDepth   int                  // current queue size
	Queued       int64                // total events queued
	Delivered    int64                // successful deliveries
	Failed       int64                // failed after retries
	Dropped      int64                // dropped due to full queue or open circuit
	RetriesTotal int64                // total retry attempts
	BreakerState circuitbreaker.State // current circuit state
}

// Notifier is an async webhook notifier. All events go to the single
// destination fixed at construction.
type Notifier struct {
	queue   chan *cloudevent.CloudEvent
	sender  *cloudevent.Sender
	breaker *circuitbreaker.Breaker
	cfg     Config
	logger  *slog.Logger
	metrics MetricsRecorder

	// Internal counters (for Stats())
	queued       atomic.Int64
	delivered    atomic.Int64
	failed       atomic.Int64
	dropped      atomic.Int64
	retriesTotal atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// NewNotifier creates a notifier and starts its delivery workers.
func NewNotifier(cfg Config, metrics MetricsRecorder) (*Notifier, error) {
	cfg = cfg.withDefaults()
	if cfg.WebhookURL == "" {
		return nil, errors.New("webhook URL is required")
	}

	n := &Notifier{
		queue:  make(chan *cloudevent.CloudEvent, cfg.QueueSize),
		sender: cloudevent.NewSender(cfg.HTTPTimeout),
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Threshold: defaultBreakerThreshold,
			Cooldown:  defaultBreakerCooldown,
		}),
		cfg:      cfg,
		logger:   slog.With("component", "notify"),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	// Start workers
	n.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go n.worker()
	}

	// Start queue size reporter if metrics enabled
	if metrics != nil {
		n.wg.Add(1)
		go n.reportQueueSize()
	}

	n.logger.Info("Notifier started", "workers", cfg.Workers, "queue", cfg.QueueSize)
	return n, nil
}

// reportQueueSize periodically reports the queue size metric.
func (n *Notifier) reportQueueSize() {
	defer n.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-n.shutdown:
			return
		case <-ticker.C:
			n.metrics.RecordNotificationQueueSize(context.Background(), int64(len(n.queue)))
		}
	}
}

// Enqueue queues an event for async delivery. Non-blocking.
// Returns ErrQueueFull if the event cannot be queued.
func (n *Notifier) Enqueue(event *cloudevent.CloudEvent) error {
	if n.closed.Load() {
		return fmt.Errorf("notifier is closed")
	}

	select {
	case n.queue <- event:
		n.queued.Add(1)
		return nil
	default:
		n.dropped.Add(1)
		if n.metrics != nil {
			n.metrics.RecordNotificationDropped(context.Background())
		}
		n.logger.Warn("Event dropped, queue full", "type", event.Type, "subject", event.Subject)
		return ErrQueueFull
	}
}

// Stats returns current notifier statistics.
func (n *Notifier) Stats() Stats {
	return Stats{
		QueueDepth:   len(n.queue),
		Queued:       n.queued.Load(),
		Delivered:    n.delivered.Load(),
		Failed:       n.failed.Load(),
		Dropped:      n.dropped.Load(),
		RetriesTotal: n.retriesTotal.Load(),
		BreakerState: n.breaker.State(),
	}
}

// Close gracefully shuts down the notifier.
func (n *Notifier) Close(ctx context.Context) error {
	if n.closed.Swap(true) {
		return nil // already closed
	}

	n.logger.Info("Notifier shutting down", "queued", len(n.queue))

	// Signal workers to stop
	close(n.shutdown)

	// Wait for workers with timeout
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.logger.Info("Notifier shutdown complete",
			"delivered", n.delivered.Load(),
			"failed", n.failed.Load(),
			"dropped", n.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		n.logger.Warn("Notifier shutdown timed out", "remaining", len(n.queue))
		return ctx.Err()
	}
}

// worker processes events from the queue.
func (n *Notifier) worker() {
	defer n.wg.Done()

	for {
		select {
		case <-n.shutdown:
			// Drain remaining events before exiting
			n.drainQueue()
			return
		case event := <-n.queue:
			n.deliver(event)
		}
	}
}

// drainQueue delivers remaining events after shutdown signal.
func (n *Notifier) drainQueue() {
	for {
		select {
		case event := <-n.queue:
			n.deliver(event)
		default:
			return // queue empty
		}
	}
}

// deliver attempts to deliver an event through the circuit breaker.
func (n *Notifier) deliver(event *cloudevent.CloudEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	err := n.breaker.Do(func() error {
		return n.sendWithRetry(ctx, event)
	})

	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		n.dropped.Add(1)
		if n.metrics != nil {
			n.metrics.RecordNotificationDropped(ctx)
		}
		n.logger.Warn("Event dropped, circuit open", "type", event.Type, "subject", event.Subject)

	case err != nil:
		n.failed.Add(1)
		if n.metrics != nil {
			n.metrics.RecordNotificationFailed(ctx)
		}
		n.logger.Warn("Delivery failed", "type", event.Type, "subject", event.Subject, "error", err)

	default:
		n.delivered.Add(1)
		if n.metrics != nil {
			n.metrics.RecordNotificationDelivered(ctx, time.Since(start).Seconds())
		}
	}
}

// sendWithRetry posts the event, retrying transient failures. Client errors
// (4xx) are permanent and end the attempt immediately.
func (n *Notifier) sendWithRetry(ctx context.Context, event *cloudevent.CloudEvent) error {
	opts := cloudevent.SendOptions{SigningKey: n.cfg.SigningKey}

	var lastErr error
	for attempt := range n.cfg.MaxRetries + 1 {
		if attempt > 0 {
			n.retriesTotal.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(n.cfg.RetryBackoff.Delay(attempt)):
			}
		}

		lastErr = n.sender.Send(ctx, n.cfg.WebhookURL, event, opts)
		if lastErr == nil {
			return nil
		}
		if cloudevent.IsClientError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
