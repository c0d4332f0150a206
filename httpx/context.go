// Package httpx carries the per-request plumbing shared by every pipeline
// stage: the request context values (correlation id, start time,
// authenticated principal), the response envelopes, the terminal error
// responder, and the JSON body decoding helper.
package httpx

import (
	"context"
	"time"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	startTimeKey
	principalKey
)

// Principal is the authenticated caller attached to a request after the
// auth middleware validates its credentials.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// WithRequestID returns a context carrying the request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the correlation id for the request, or "" when the
// request never passed through the correlation middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithStartTime returns a context carrying the request start timestamp.
func WithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey, t)
}

// StartTime returns the request start timestamp, zero if absent.
func StartTime(ctx context.Context) time.Time {
	t, _ := ctx.Value(startTimeKey).(time.Time)
	return t
}

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the authenticated principal, or nil for an
// anonymous request.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
