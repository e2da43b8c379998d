package util

import (
	"context"
	"log/slog"
	"net/netip"

	"github.com/google/uuid"
)

type sessionIDContextKey struct{}

// NewSessionID returns a random identifier for one client connection.
func NewSessionID() string {
	return uuid.NewString()
}

// WithSession tags ctx with a fresh session id and stores a child of base
// carrying "session" and "addr" so that code downstream of the accept loop
// can call LoggerFromContext and get correlated logs.
func WithSession(ctx context.Context, base *slog.Logger, addr netip.Addr) context.Context {
	if base == nil {
		base = slog.Default()
	}
	id := NewSessionID()
	ctx = context.WithValue(ctx, sessionIDContextKey{}, id)
	return ContextWithLogger(ctx, base.With("session", id, "addr", addr.String()))
}

// SessionIDFromContext returns the session id set by WithSession.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionIDContextKey{}).(string)
	return id
}
