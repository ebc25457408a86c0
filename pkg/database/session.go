package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/taskflow-dev/todo-backend/pkg/apperrors"
	"github.com/taskflow-dev/todo-backend/pkg/logging"
)

// ErrSessionReleased is returned when a session is used after its scope ended.
var ErrSessionReleased = errors.New("database session already released")

// Session is one connection borrowed from the pool for one unit of work.
// It is only valid inside the WithSession callback (or the request handled
// by WithSessionContext) and must not be shared between goroutines.
type Session struct {
	conn *pgxpool.Conn
	db   *DB
}

// WithSession acquires a session, runs fn with it and releases it on every
// exit path, including a panic inside fn. An error from fn is logged and
// returned unchanged.
func (db *DB) WithSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	s, err := db.acquire(ctx)
	if err != nil {
		db.logger.Error("Failed to acquire database session", zap.String("error", logging.SanitizeError(err)))
		return err
	}
	defer s.release()

	if err := fn(ctx, s); err != nil {
		db.metrics.SessionFailed()
		db.logger.Error("Database session error", zap.String("error", logging.SanitizeError(err)))
		return err
	}
	return nil
}

// Ping checks liveness through a scoped session.
func (db *DB) Ping(ctx context.Context) error {
	return db.WithSession(ctx, func(ctx context.Context, s *Session) error {
		return s.Ping(ctx)
	})
}

// acquire waits at most acquireTimeout for a connection.
func (db *DB) acquire(ctx context.Context) (*Session, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, db.acquireTimeout)
	defer cancel()

	conn, err := db.pool.Acquire(acquireCtx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(acquireCtx.Err(), context.DeadlineExceeded) {
			db.metrics.Exhausted()
			return nil, fmt.Errorf("%w: no connection available within %s", apperrors.ErrPoolExhausted, db.acquireTimeout)
		}
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	db.metrics.SessionAcquired()
	return &Session{conn: conn, db: db}, nil
}

// release returns the connection to the pool. Only the first call has an effect.
// pgxpool destroys the connection instead if it is broken or mid-transaction.
func (s *Session) release() {
	if s.conn == nil {
		return
	}
	s.conn.Release()
	s.conn = nil
	s.db.metrics.SessionReleased()
}

// Exec executes sql on the session's connection.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if s.conn == nil {
		return pgconn.CommandTag{}, ErrSessionReleased
	}
	return s.conn.Exec(ctx, sql, args...)
}

// Query runs sql and returns the resulting rows. The rows must be closed
// before the session scope ends.
func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.conn == nil {
		return nil, ErrSessionReleased
	}
	return s.conn.Query(ctx, sql, args...)
}

// QueryRow runs sql that is expected to return at most one row.
func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.conn == nil {
		return errRow{err: ErrSessionReleased}
	}
	return s.conn.QueryRow(ctx, sql, args...)
}

// Begin starts a transaction on the session's connection.
func (s *Session) Begin(ctx context.Context) (pgx.Tx, error) {
	if s.conn == nil {
		return nil, ErrSessionReleased
	}
	return s.conn.Begin(ctx)
}

// Ping checks the session's connection.
func (s *Session) Ping(ctx context.Context) error {
	if s.conn == nil {
		return ErrSessionReleased
	}
	return s.conn.Ping(ctx)
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}
