// Package requestcontext carries request-scoped values (request ID, request
// time, form session ID) through a context without importing net/http.
// Middleware and the form session host set them; the registration service
// and stores read them.
package requestcontext

import (
	"context"
	"time"
)

type key int

const (
	requestIDKey key = iota
	requestTimeKey
	sessionIDKey
)

func value[T any](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

// RequestID returns the request ID, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := value[string](ctx, requestIDKey)
	return id
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// Now returns the time the request arrived, or time.Now() when none was
// recorded (CLI, terminal form, background saves).
func Now(ctx context.Context) time.Time {
	if t, ok := value[time.Time](ctx, requestTimeKey); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}

// SessionID returns the form session a save originates from, or "" for
// direct API and terminal saves.
func SessionID(ctx context.Context) string {
	id, _ := value[string](ctx, sessionIDKey)
	return id
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}
