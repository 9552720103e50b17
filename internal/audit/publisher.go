package audit

import (
	"context"
	"errors"
	"time"

	"regform/pkg/email"
)

// ErrMissingAction is returned for events without an Action.
var ErrMissingAction = errors.New("audit event has no action")

// Sink is where published events end up: the in-memory store, the log
// store, the Kafka store or the Queue in front of a Worker.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher stamps registration events and hands them to a Sink.
type Publisher struct {
	sink Sink
	now  func() time.Time
}

type PublisherOption func(*Publisher)

func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(sink Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills the timestamp when missing and normalizes the e-mail so events
// for the same registrant group together regardless of casing.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Action == "" {
		return ErrMissingAction
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	event.Email = email.Normalize(event.Email)
	return p.sink.Append(ctx, event)
}
