package database

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/taskflow-dev/todo-backend/pkg/logging"
	"github.com/taskflow-dev/todo-backend/pkg/metrics"
)

// queryTracer implements pgx.QueryTracer to time statements.
type queryTracer struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

type queryContextKey struct{}

type queryContext struct {
	startTime time.Time
	sql       string
}

func newQueryTracer(logger *zap.Logger, m *metrics.Metrics) *queryTracer {
	return &queryTracer{logger: logger, metrics: m}
}

// TraceQueryStart is called at the start of a query
func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryContextKey{}, queryContext{
		startTime: time.Now(),
		sql:       data.SQL,
	})
}

// TraceQueryEnd is called at the end of a query
func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qctx, ok := ctx.Value(queryContextKey{}).(queryContext)
	if !ok {
		return
	}

	duration := time.Since(qctx.startTime)
	t.metrics.ObserveQuery(commandName(qctx.sql), duration.Seconds(), data.Err != nil)

	if ce := t.logger.Check(zap.DebugLevel, "SQL statement"); ce != nil {
		fields := []zap.Field{
			zap.String("sql", logging.SanitizeQuery(qctx.sql)),
			zap.Duration("duration", duration),
			zap.String("tag", data.CommandTag.String()),
		}
		if data.Err != nil {
			fields = append(fields, zap.String("error", logging.SanitizeError(data.Err)))
		}
		ce.Write(fields...)
	}
}

// commandName returns the leading SQL keyword, upper-cased, as a
// low-cardinality metric label.
func commandName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	cmd := strings.ToUpper(fields[0])
	if len(cmd) > 20 {
		cmd = cmd[:20]
	}
	return cmd
}
