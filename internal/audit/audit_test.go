package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStampsEvents(t *testing.T) {
	store := NewInMemoryStore()
	fixed := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	pub := NewPublisher(store, WithPublisherClock(func() time.Time { return fixed }))

	require.NoError(t, pub.Emit(context.Background(), Event{Action: ActionRegistrationCreated, RegistrationID: "r-1"}))
	explicit := fixed.Add(-time.Hour)
	require.NoError(t, pub.Emit(context.Background(), Event{Action: ActionRegistrationRefused, Timestamp: explicit}))

	events := store.All()
	require.Len(t, events, 2)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, explicit, events[1].Timestamp)

	created, err := store.ListByAction(context.Background(), ActionRegistrationCreated)
	require.NoError(t, err)
	assert.Len(t, created, 1)
	assert.Equal(t, "r-1", created[0].RegistrationID)
}

func TestPublisherNormalizesEmailAndRequiresAction(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	assert.ErrorIs(t, pub.Emit(context.Background(), Event{Email: "a@example.com"}), ErrMissingAction)
	assert.Empty(t, store.All())

	require.NoError(t, pub.Emit(context.Background(), Event{
		Action: ActionRegistrationRefused,
		Email:  "  Jean.Dupont@Example.COM ",
		Reason: "DUPLICATE",
	}))
	events := store.All()
	require.Len(t, events, 1)
	assert.Equal(t, "jean.dupont@example.com", events[0].Email)
}

func TestQueueRejectsWhenFull(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Append(context.Background(), Event{Action: ActionRegistrationCreated}))
	assert.ErrorIs(t, q.Append(context.Background(), Event{Action: ActionRegistrationCreated}), ErrQueueFull)
}

type failingStore struct{}

func (failingStore) Append(context.Context, Event) error { return errors.New("sink down") }

func TestWorkerDrainsQueue(t *testing.T) {
	q := NewQueue(4)
	sink := NewInMemoryStore()
	w := NewWorker(sink, q.Events(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, q.Append(ctx, Event{Action: ActionRegistrationCreated, RegistrationID: "a"}))
	require.NoError(t, q.Append(ctx, Event{Action: ActionRegistrationCreated, RegistrationID: "b"}))

	require.Eventually(t, func() bool { return len(sink.All()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWorkerSurvivesSinkErrors(t *testing.T) {
	q := NewQueue(2)
	w := NewWorker(failingStore{}, q.Events(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, q.Append(ctx, Event{Action: ActionRegistrationCreated}))
	require.Eventually(t, func() bool { return len(q.Events()) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWorkerStopsWhenQueueClosed(t *testing.T) {
	q := NewQueue(4)
	sink := NewInMemoryStore()
	w := NewWorker(sink, q.Events(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, q.Append(context.Background(), Event{Action: ActionRegistrationCreated, RegistrationID: "a"}))
	require.NoError(t, q.Append(context.Background(), Event{Action: ActionRegistrationRefused, Email: "b@example.com"}))
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Append(context.Background(), Event{Action: ActionRegistrationCreated}), ErrQueueClosed)
	assert.NoError(t, w.Run(context.Background()))
	assert.Len(t, sink.All(), 2)
}

func TestCancelledWorkerWritesBufferedEvents(t *testing.T) {
	q := NewQueue(4)
	sink := NewInMemoryStore()
	var logs bytes.Buffer
	w := NewWorker(sink, q.Events(), slog.New(slog.NewTextHandler(&logs, nil)))
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Append(context.Background(), Event{Action: ActionRegistrationCreated, RegistrationID: id}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.drain(ctx)

	assert.Len(t, sink.All(), 3)
	assert.Contains(t, logs.String(), "audit queue drained on shutdown")
	assert.Contains(t, logs.String(), "written=3")
}

type slowStore struct{ delay time.Duration }

func (s slowStore) Append(context.Context, Event) error {
	time.Sleep(s.delay)
	return nil
}

func TestDrainLogsEventsLeftAfterTimeout(t *testing.T) {
	q := NewQueue(4)
	var logs bytes.Buffer
	w := NewWorker(slowStore{delay: 30 * time.Millisecond}, q.Events(),
		slog.New(slog.NewTextHandler(&logs, nil)), WithDrainTimeout(5*time.Millisecond))
	for range 3 {
		require.NoError(t, q.Append(context.Background(), Event{Action: ActionRegistrationCreated}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.drain(ctx)

	assert.Empty(t, q.Events())
	assert.Contains(t, logs.String(), "audit events dropped on shutdown")
	assert.Contains(t, logs.String(), "written=1")
	assert.Contains(t, logs.String(), "dropped=2")
}

func TestLogStore(t *testing.T) {
	store := NewLogStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, store.Append(context.Background(), Event{Action: ActionRegistrationCreated}))
}
