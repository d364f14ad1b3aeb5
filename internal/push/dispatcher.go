package push

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
)

// Stats is a snapshot of the dispatcher's cumulative delivery counters.
type Stats struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Dispatcher fans deliveries out over a fixed worker pool. Each send is
// retried with exponential backoff before being counted as failed; failures
// are counted and logged, never propagated to the operation that produced
// the notification.
type Dispatcher struct {
	sender Sender
	log    *slog.Logger

	queue chan Message
	wg    sync.WaitGroup

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64

	baseDelay   time.Duration
	maxAttempts uint64
}

// NewDispatcher starts workers goroutines draining a queue of queueSize.
// Close must be called to drain and stop them.
func NewDispatcher(sender Sender, workers, queueSize int, log *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 256
	}
	d := &Dispatcher{
		sender:      sender,
		log:         log,
		queue:       make(chan Message, queueSize),
		baseDelay:   250 * time.Millisecond,
		maxAttempts: 4, // initial try plus three retries
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue hands a message to the worker pool without blocking. When the
// queue is full the message is dropped and counted — push delivery is
// at-least-once from the stored record's perspective, not from the queue's.
func (d *Dispatcher) Enqueue(msg Message) {
	select {
	case d.queue <- msg:
	default:
		d.dropped.Add(1)
		d.log.Warn("push queue full, delivery dropped", "type", msg.Type)
	}
}

// Close stops accepting work, waits for in-flight deliveries, and returns
// when the queue is drained or ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	close(d.queue)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the cumulative delivery counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

// deliver sends one message, retrying transient failures with exponential
// backoff. Every send error is treated as retryable: the gateway does not
// distinguish permanent token failures in a way worth special-casing here.
func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	backoff := retry.WithMaxRetries(d.maxAttempts-1, retry.NewExponential(d.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return retry.RetryableError(d.sender.Send(ctx, msg))
	})
	if err != nil {
		d.failed.Add(1)
		d.log.Error("push delivery failed", "type", msg.Type, "error", err)
		return
	}
	d.sent.Add(1)
}
