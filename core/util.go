package core

import (
	"context"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

type ctxKey int

const sessionIDKey ctxKey = iota

// SessionIDHeader carries the exam session id to every backend the session talks to.
const SessionIDHeader = "X-Session-ID"

// WithSessionID returns a copy of ctx carrying the exam session id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFrom returns the exam session id stored in ctx, if any.
func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}
