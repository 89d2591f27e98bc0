// Package notify delivers monitor notifications. The engine hands each
// notification to a Queue, which returns immediately; a fixed set of workers
// pushes it through a Dispatcher (log, webhook, NATS or several at once).
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"budgee-monitor/src/metrics"
	"budgee-monitor/src/monitor"
)

var (
	ErrQueueFull   = errors.New("notification queue full")
	ErrQueueClosed = errors.New("notification queue closed")
)

// Dispatcher delivers one notification to a channel.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, n monitor.Notification) error
}

type QueueConfig struct {
	Workers int
	Buffer  int
	// Timeout bounds a single dispatch.
	Timeout time.Duration
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{Workers: 2, Buffer: 256, Timeout: 10 * time.Second}
}

// QueueStats is a point-in-time view of the queue counters.
type QueueStats struct {
	Dispatched int64 `json:"dispatched"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// Queue implements monitor.Notifier. Notify never blocks: when the buffer is
// full the notification is dropped and ErrQueueFull returned. The latch that
// produced it stays set.
type Queue struct {
	dispatcher Dispatcher
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	ch     chan monitor.Notification
	wg     sync.WaitGroup

	dispatched atomic.Int64
	failed     atomic.Int64
	dropped    atomic.Int64
}

func NewQueue(d Dispatcher, cfg QueueConfig, logger *slog.Logger, m *metrics.Metrics) *Queue {
	defaults := DefaultQueueConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaults.Buffer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		dispatcher: d,
		timeout:    cfg.Timeout,
		logger:     logger.With("component", "notify", "dispatcher", d.Name()),
		metrics:    m,
		ch:         make(chan monitor.Notification, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *Queue) Notify(_ context.Context, n monitor.Notification) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- n:
		return nil
	default:
		q.dropped.Add(1)
		q.metrics.Dropped(string(n.Kind))
		q.logger.Warn("Notification dropped", "notification_id", n.ID, "kind", n.Kind, "user_id", n.UserID)
		return ErrQueueFull
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for n := range q.ch {
		q.dispatch(n)
	}
}

func (q *Queue) dispatch(n monitor.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.dispatcher.Dispatch(ctx, n); err != nil {
		q.failed.Add(1)
		q.metrics.DispatchFailed(q.dispatcher.Name(), string(n.Kind))
		derr := &monitor.DispatchError{Kind: n.Kind, UserID: n.UserID, Err: err}
		q.logger.Error("Notification delivery failed", "notification_id", n.ID, "error", derr)
		return
	}
	q.dispatched.Add(1)
	q.metrics.Dispatched(q.dispatcher.Name(), string(n.Kind))
	q.logger.Debug("Notification delivered", "notification_id", n.ID, "kind", n.Kind)
}

// Close stops accepting notifications and waits for queued ones to be
// delivered, or for ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Dispatched: q.dispatched.Load(),
		Failed:     q.failed.Load(),
		Dropped:    q.dropped.Load(),
	}
}
