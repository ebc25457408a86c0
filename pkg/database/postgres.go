package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/taskflow-dev/todo-backend/pkg/apperrors"
	"github.com/taskflow-dev/todo-backend/pkg/logging"
	"github.com/taskflow-dev/todo-backend/pkg/metrics"
)

const (
	defaultPoolSize       = 10
	defaultRecycle        = 5 * time.Minute
	defaultAcquireTimeout = 30 * time.Second
)

// DB owns the process-wide connection pool.
// Create it once at startup with NewConnection and pass it to the code that
// needs sessions; sessions are only handed out through WithSession.
type DB struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
	logger         *zap.Logger
	metrics        *metrics.Metrics
	closeOnce      sync.Once
}

// Config holds database connection configuration.
type Config struct {
	URL     string
	SSLMode string

	// RecycleInterval is the longest a connection may sit idle before it is
	// discarded instead of handed out.
	RecycleInterval time.Duration

	// PrePing pings every connection before it is handed out.
	PrePing bool

	// PoolSize connections are kept open; MaxOverflow more may be opened under load.
	PoolSize    int32
	MaxOverflow int32

	// AcquireTimeout bounds how long a caller waits for a free connection.
	AcquireTimeout time.Duration

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// NewConnection creates the connection pool and verifies the database is reachable.
// On failure nothing is left open and the error is returned to the caller.
func NewConnection(ctx context.Context, cfg *Config, logger *zap.Logger) (*DB, error) {
	db, err := newConnection(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create database engine", zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}

	logger.Info("Database engine created successfully",
		zap.String("url", logging.SanitizeConnectionString(cfg.URL)),
		zap.String("ssl_mode", cfg.SSLMode),
		zap.Int32("pool_size", db.pool.Config().MinConns),
		zap.Int32("max_conns", db.pool.Config().MaxConns),
		zap.Duration("recycle", db.pool.Config().MaxConnIdleTime),
		zap.Bool("pre_ping", cfg.PrePing),
	)
	return db, nil
}

func newConnection(ctx context.Context, cfg *Config, logger *zap.Logger) (*DB, error) {
	connString, err := applySSLMode(cfg.URL, cfg.SSLMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		// pgx echoes the DSN in parse errors.
		return nil, fmt.Errorf("%w: failed to parse database URL: %w", apperrors.ErrInvalidConfig, logging.Sanitized(err))
	}

	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = defaultPoolSize
	}
	if poolSize < 0 || cfg.MaxOverflow < 0 {
		return nil, fmt.Errorf("%w: pool size %d and overflow %d must not be negative", apperrors.ErrInvalidConfig, poolSize, cfg.MaxOverflow)
	}

	if cfg.RecycleInterval < 0 || cfg.AcquireTimeout < 0 {
		return nil, fmt.Errorf("%w: recycle interval %s and acquire timeout %s must not be negative",
			apperrors.ErrInvalidConfig, cfg.RecycleInterval, cfg.AcquireTimeout)
	}

	recycle := cfg.RecycleInterval
	if recycle == 0 {
		recycle = defaultRecycle
	}

	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout == 0 {
		acquireTimeout = defaultAcquireTimeout
	}

	// Base connections stay warm; overflow connections are trimmed once idle.
	poolConfig.MinConns = poolSize
	poolConfig.MaxConns = poolSize + cfg.MaxOverflow
	poolConfig.MaxConnIdleTime = recycle

	recycler := newConnRecycler(recycle, cfg.PrePing, logger, cfg.Metrics)
	poolConfig.AfterConnect = recycler.afterConnect
	poolConfig.PrepareConn = recycler.prepareConn
	poolConfig.AfterRelease = recycler.afterRelease
	poolConfig.BeforeClose = recycler.beforeClose

	poolConfig.ConnConfig.Tracer = newQueryTracer(logger, cfg.Metrics)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create connection pool: %w", apperrors.ErrInvalidConfig, logging.Sanitized(err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", apperrors.ErrDatabaseUnreachable, logging.Sanitized(err))
	}

	return &DB{
		pool:           pool,
		acquireTimeout: acquireTimeout,
		logger:         logger,
		metrics:        cfg.Metrics,
	}, nil
}

// Close closes the connection pool. It blocks until every session has been
// released and is safe to call more than once.
func (db *DB) Close() {
	db.closeOnce.Do(func() {
		db.pool.Close()
		db.logger.Info("Database connection pool closed")
	})
}

// PoolStats returns a snapshot of the pool counters.
func (db *DB) PoolStats() metrics.PoolStats {
	s := db.pool.Stat()
	return metrics.PoolStats{
		AcquiredConns:        s.AcquiredConns(),
		IdleConns:            s.IdleConns(),
		TotalConns:           s.TotalConns(),
		MaxConns:             s.MaxConns(),
		AcquireCount:         s.AcquireCount(),
		EmptyAcquireCount:    s.EmptyAcquireCount(),
		CanceledAcquireCount: s.CanceledAcquireCount(),
		AcquireDuration:      s.AcquireDuration(),
	}
}

// applySSLMode forces sslmode onto a URL or keyword/value connection string.
// channel_binding is dropped from URLs because pgx negotiates SCRAM on its own.
func applySSLMode(connString, sslMode string) (string, error) {
	connString = strings.TrimSpace(connString)
	if connString == "" {
		return "", fmt.Errorf("connection string is empty")
	}
	if sslMode == "" {
		return connString, nil
	}

	if strings.HasPrefix(connString, "postgres://") || strings.HasPrefix(connString, "postgresql://") {
		u, err := url.Parse(connString)
		if err != nil {
			return "", fmt.Errorf("malformed connection URL: %w", logging.Sanitized(err))
		}
		q := u.Query()
		q.Set("sslmode", sslMode)
		q.Del("channel_binding")
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	// Later keywords win in keyword/value strings.
	return connString + " sslmode=" + sslMode, nil
}
