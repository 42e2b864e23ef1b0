package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"wagerbot/internal/events"
	"wagerbot/internal/metrics"
)

// DefaultQueueSize is the buffer given to a Queue when none is set.
const DefaultQueueSize = 256

// Queue hands events to a slower sink on its own goroutine. Notify never
// blocks: when the buffer is full the event is dropped and counted.
type Queue struct {
	name string
	next events.Notifier
	log  *zap.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan queued
	done   chan struct{}
}

type queued struct {
	ctx context.Context
	e   events.Event
}

func NewQueue(name string, next events.Notifier, size int, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{
		name: name,
		next: next,
		log:  log.Named("queue").With(zap.String("sink", name)),
		ch:   make(chan queued, size),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for item := range q.ch {
		q.next.Notify(item.ctx, item.e)
	}
}

func (q *Queue) Notify(ctx context.Context, e events.Event) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- queued{ctx: context.WithoutCancel(ctx), e: e}:
	default:
		metrics.NotifyFailures.WithLabelValues(q.name).Inc()
		q.log.Warn("event queue full, dropping status event",
			zap.String("event_id", e.ID),
			zap.Int64("wager_id", e.WagerID),
		)
	}
}

// Close stops accepting events and waits until the buffered ones have been
// delivered or ctx is done.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
