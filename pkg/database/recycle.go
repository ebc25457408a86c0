package database

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/taskflow-dev/todo-backend/pkg/logging"
	"github.com/taskflow-dev/todo-backend/pkg/metrics"
)

const (
	recycleReasonIdle = "idle"
	recycleReasonPing = "ping"
)

// connRecycler implements the checkout policy through the pgxpool hooks.
// It remembers when each connection last went back to the pool so that a
// connection idle longer than the recycle interval is destroyed at checkout
// instead of being handed out; pgxpool then moves on to the next one.
type connRecycler struct {
	recycle time.Duration
	prePing bool
	logger  *zap.Logger
	metrics *metrics.Metrics

	now    func() time.Time
	ping   func(ctx context.Context, conn *pgx.Conn) error
	closed func(conn *pgx.Conn) bool

	mu       sync.Mutex
	lastUsed map[*pgx.Conn]time.Time
}

func newConnRecycler(recycle time.Duration, prePing bool, logger *zap.Logger, m *metrics.Metrics) *connRecycler {
	return &connRecycler{
		recycle:  recycle,
		prePing:  prePing,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		ping:     func(ctx context.Context, conn *pgx.Conn) error { return conn.Ping(ctx) },
		closed:   func(conn *pgx.Conn) bool { return conn.IsClosed() },
		lastUsed: make(map[*pgx.Conn]time.Time),
	}
}

func (r *connRecycler) afterConnect(_ context.Context, conn *pgx.Conn) error {
	r.touch(conn)
	return nil
}

// prepareConn runs at checkout. Returning false with a nil error makes
// pgxpool destroy the connection and try the next one. When the caller's
// context ends during the pre-ping, the acquisition fails with the context
// error and the connection goes back to the pool unless the interrupted
// ping closed it.
func (r *connRecycler) prepareConn(ctx context.Context, conn *pgx.Conn) (bool, error) {
	if idle, expired := r.idleFor(conn); expired {
		r.logger.Debug("Discarding connection idle past recycle interval",
			zap.Duration("idle", idle),
			zap.Duration("recycle", r.recycle))
		r.metrics.Recycled(recycleReasonIdle)
		return false, nil
	}

	if r.prePing {
		if err := r.ping(ctx, conn); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return !r.closed(conn), ctxErr
			}
			r.logger.Warn("Discarding connection that failed pre-ping",
				zap.String("error", logging.SanitizeError(err)))
			r.metrics.Recycled(recycleReasonPing)
			return false, nil
		}
	}

	return true, nil
}

func (r *connRecycler) afterRelease(conn *pgx.Conn) bool {
	r.touch(conn)
	return true
}

func (r *connRecycler) beforeClose(conn *pgx.Conn) {
	r.mu.Lock()
	delete(r.lastUsed, conn)
	r.mu.Unlock()
}

func (r *connRecycler) touch(conn *pgx.Conn) {
	r.mu.Lock()
	r.lastUsed[conn] = r.now()
	r.mu.Unlock()
}

// idleFor reports how long conn has been idle and whether that exceeds the
// recycle interval. Untracked connections are treated as fresh.
func (r *connRecycler) idleFor(conn *pgx.Conn) (time.Duration, bool) {
	r.mu.Lock()
	last, ok := r.lastUsed[conn]
	r.mu.Unlock()
	if !ok {
		return 0, false
	}
	idle := r.now().Sub(last)
	return idle, idle > r.recycle
}
