package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned by Queue.Append when the buffer is exhausted.
	ErrQueueFull = errors.New("audit queue full")
	// ErrQueueClosed is returned by Queue.Append after Close.
	ErrQueueClosed = errors.New("audit queue closed")
)

// DefaultDrainTimeout bounds how long a stopping Worker keeps writing
// buffered events.
const DefaultDrainTimeout = 5 * time.Second

// Queue is a Sink that buffers events for a Worker, so publishing never
// waits on a slow sink.
type Queue struct {
	mu     sync.RWMutex
	closed bool
	events chan Event
}

func NewQueue(size int) *Queue {
	return &Queue{events: make(chan Event, size)}
}

// Append enqueues without blocking.
func (q *Queue) Append(_ context.Context, event Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events. A Worker reading Events writes what is
// still buffered and then returns.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
}

// Events is the inbox a Worker drains.
func (q *Queue) Events() <-chan Event {
	return q.events
}

// Worker consumes audit events from a channel and persists them. A failed
// append is logged and the worker moves on to the next event.
type Worker struct {
	store        Sink
	inbox        <-chan Event
	logger       *slog.Logger
	drainTimeout time.Duration
}

type WorkerOption func(*Worker)

func WithDrainTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.drainTimeout = d
		}
	}
}

func NewWorker(store Sink, inbox <-chan Event, logger *slog.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{store: store, inbox: inbox, logger: logger, drainTimeout: DefaultDrainTimeout}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run appends events until the inbox is closed (returns nil) or ctx is
// cancelled. On cancellation the events already buffered are still written,
// within the drain timeout; whatever is left after it is counted and logged
// as dropped before Run returns ctx.Err().
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.append(ctx, event)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.drainTimeout)
	defer cancel()

	written, dropped := 0, 0
	for {
		select {
		case event, ok := <-w.inbox:
			if !ok {
				w.logDrain(ctx, written, dropped)
				return
			}
			if drainCtx.Err() != nil {
				dropped++
				continue
			}
			w.append(drainCtx, event)
			written++
		default:
			w.logDrain(ctx, written, dropped)
			return
		}
	}
}

func (w *Worker) logDrain(ctx context.Context, written, dropped int) {
	if dropped > 0 {
		w.logger.ErrorContext(ctx, "audit events dropped on shutdown", "written", written, "dropped", dropped)
		return
	}
	if written > 0 {
		w.logger.InfoContext(ctx, "audit queue drained on shutdown", "written", written)
	}
}

func (w *Worker) append(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "failed to append audit event",
			"action", event.Action,
			"request_id", event.RequestID,
			"error", err,
		)
	}
}
