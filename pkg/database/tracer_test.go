package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taskflow-dev/todo-backend/pkg/metrics"
)

func TestCommandName(t *testing.T) {
	tests := []struct {
		sql      string
		expected string
	}{
		{sql: "SELECT 1", expected: "SELECT"},
		{sql: "\n\t insert into users values ($1)", expected: "INSERT"},
		{sql: "", expected: "UNKNOWN"},
		{sql: "   ", expected: "UNKNOWN"},
		{sql: "averyveryverylongkeywordthatkeepsgoing", expected: "AVERYVERYVERYLONGKEY"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, commandName(tt.sql), "sql=%q", tt.sql)
	}
}

func TestQueryTracer_RecordsDurationAndErrors(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	m := metrics.New(prometheus.NewRegistry())
	tracer := newQueryTracer(zap.New(core), m)

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT password=hunter2"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{
		CommandTag: pgconn.NewCommandTag("SELECT 1"),
	})

	ctx = tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "UPDATE users SET name = $1"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("deadlock detected")})

	assert.Equal(t, 2, testutil.CollectAndCount(m.QueryDuration))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueryErrors.WithLabelValues("UPDATE")))

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0].ContextMap()
	assert.NotContains(t, first["sql"], "hunter2")
	assert.Equal(t, "deadlock detected", logs.All()[1].ContextMap()["error"])
}

func TestQueryTracer_EndWithoutStartIsIgnored(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tracer := newQueryTracer(zap.New(core), nil)

	assert.NotPanics(t, func() {
		tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
	})
	assert.Equal(t, 0, logs.Len())
}

func TestQueryTracer_NoDebugLogAtInfoLevel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tracer := newQueryTracer(zap.New(core), nil)

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	assert.Equal(t, 0, logs.Len())
}
