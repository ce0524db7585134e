package notify

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Queue delivers events on its own goroutine so callers never block on a
// slow broker. Events are delivered in order; when the buffer is full new
// events are dropped and logged.
type Queue struct {
	next    Notifier
	timeout time.Duration
	logger  log.Logger

	mu     sync.Mutex
	closed bool
	events chan Event
	done   chan struct{}
}

func NewQueue(next Notifier, size int, timeout time.Duration, logger log.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	q := &Queue{
		next:    next,
		timeout: timeout,
		logger:  logger,
		events:  make(chan Event, size),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Notify enqueues the event. Events posted after Close are discarded.
func (q *Queue) Notify(_ context.Context, e Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	select {
	case q.events <- e:
	default:
		level.Warn(q.logger).Log("msg", "notification dropped", "event", e.Type, "document", e.DocumentID)
	}
	return nil
}

func (q *Queue) run() {
	defer close(q.done)
	for e := range q.events {
		ctx := context.Background()
		cancel := func() {}
		if q.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, q.timeout)
		}
		if err := q.next.Notify(ctx, e); err != nil {
			level.Error(q.logger).Log("msg", "notification failed", "event", e.Type, "err", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for the buffered ones to be sent.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()
	<-q.done
}
