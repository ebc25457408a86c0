package database

import (
	"context"
)

type contextKey string

const (
	// SessionKey is the context key for the request-scoped database session.
	SessionKey contextKey = "dbSession"
)

// GetSession retrieves the request-scoped session from context.
// Returns nil and false if not present.
func GetSession(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(SessionKey).(*Session)
	return s, ok
}

// SetSession stores the session in context.
func SetSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, SessionKey, s)
}
