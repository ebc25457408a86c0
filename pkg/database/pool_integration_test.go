//go:build integration

package database_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskflow-dev/todo-backend/pkg/apperrors"
	"github.com/taskflow-dev/todo-backend/pkg/database"
	"github.com/taskflow-dev/todo-backend/pkg/testhelpers"
)

// poolOptions tweaks the pool under test.
type poolOptions struct {
	size     int32
	overflow int32
	recycle  time.Duration
	prePing  bool
	timeout  time.Duration
}

func newTestPool(t *testing.T, opts poolOptions) *database.DB {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             testDB.ConnStr,
		SSLMode:         "disable",
		RecycleInterval: opts.recycle,
		PrePing:         opts.prePing,
		PoolSize:        opts.size,
		MaxOverflow:     opts.overflow,
		AcquireTimeout:  opts.timeout,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func backendPID(t *testing.T, db *database.DB) uint32 {
	t.Helper()
	var pid uint32
	err := db.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		return s.QueryRow(ctx, "SELECT pg_backend_pid()").Scan(&pid)
	})
	require.NoError(t, err)
	return pid
}

// holdSession keeps a session checked out until the returned release func is called.
func holdSession(t *testing.T, db *database.DB) (release func()) {
	t.Helper()
	acquired := make(chan struct{})
	done := make(chan struct{})
	var once sync.Once

	go func() {
		_ = db.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
			close(acquired)
			<-done
			return nil
		})
	}()

	select {
	case <-acquired:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out holding a session")
	}
	release = func() { once.Do(func() { close(done) }) }
	t.Cleanup(release)
	return release
}

func TestNewConnection_PoolLimits(t *testing.T) {
	db := newTestPool(t, poolOptions{size: 3, overflow: 2})

	stats := db.PoolStats()
	assert.Equal(t, int32(5), stats.MaxConns)
	require.NoError(t, db.Ping(context.Background()))
}

func TestWithSession_ThirdAcquisitionBlocksUntilRelease(t *testing.T) {
	db := newTestPool(t, poolOptions{size: 2, overflow: 0, timeout: 10 * time.Second})

	releaseFirst := holdSession(t, db)
	holdSession(t, db)

	thirdAcquired := make(chan struct{})
	thirdDone := make(chan error, 1)
	go func() {
		thirdDone <- db.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
			close(thirdAcquired)
			return nil
		})
	}()

	select {
	case <-thirdAcquired:
		t.Fatal("third acquisition should block while two sessions are held")
	case <-time.After(300 * time.Millisecond):
	}

	releaseFirst()

	select {
	case <-thirdAcquired:
	case <-time.After(5 * time.Second):
		t.Fatal("third acquisition did not unblock after a release")
	}
	require.NoError(t, <-thirdDone)
}

func TestWithSession_ConcurrentUpToCapacity(t *testing.T) {
	db := newTestPool(t, poolOptions{size: 2, overflow: 2, timeout: 5 * time.Second})

	var wg sync.WaitGroup
	inside := make(chan struct{}, 4)
	proceed := make(chan struct{})
	errs := make(chan error, 4)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- db.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
				inside <- struct{}{}
				<-proceed
				_, err := s.Exec(ctx, "SELECT 1")
				return err
			})
		}()
	}

	for i := 0; i < 4; i++ {
		select {
		case <-inside:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of 4 sessions acquired concurrently", i)
		}
	}
	assert.Equal(t, int32(4), db.PoolStats().AcquiredConns)

	close(proceed)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(0), db.PoolStats().AcquiredConns)
}

func TestWithSession_ErrorPropagatesAndConnectionReturns(t *testing.T) {
	db := newTestPool(t, poolOptions{size: 1, overflow: 0, timeout: 2 * time.Second})
	errBoom := errors.New("boom")

	err := db.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		if _, err := s.Exec(ctx, "SELECT 1"); err != nil {
			return err
		}
		return errBoom
	})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, int32(0), db.PoolStats().AcquiredConns)

	// The only connection is back in the pool.
	require.NoError(t, db.Ping(context.Background()))
}

func TestWithSession_QueryErrorKeepsKind(t *testing.T) {
	db := newTestPool(t, poolOptions{size: 1, overflow: 0, timeout: 2 * time.Second})

	err := db.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		_, err := s.Exec(ctx, "SELECT * FROM table_that_does_not_exist")
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table_that_does_not_exist")

	require.NoError(t, db.Ping(context.Background()))
}

func TestWithSession_PanicReleasesSession(t *testing.T) {
	db := newTestPool(t, poolOptions{size: 1, overflow: 0, timeout: 2 * time.Second})

	assert.Panics(t, func() {
		_ = db.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
			panic("handler bug")
		})
	})

	require.NoError(t, db.Ping(context.Background()))
}

func TestWithSession_OpenTransactionIsNotReused(t *testing.T) {
	db := newTestPool(t, poolOptions{size: 1, overflow: 0, timeout: 2 * time.Second})

	var abandoned uint32
	err := db.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		if _, err := s.Begin(ctx); err != nil {
			return err
		}
		return s.QueryRow(ctx, "SELECT pg_backend_pid()").Scan(&abandoned)
	})
	require.NoError(t, err)

	// pgxpool destroys a connection released mid-transaction.
	assert.NotEqual(t, abandoned, backendPID(t, db))
}

func TestWithSession_PoolExhaustedAfterTimeout(t *testing.T) {
	db := newTestPool(t, poolOptions{size: 1, overflow: 0, timeout: 200 * time.Millisecond})
	holdSession(t, db)

	called := false
	start := time.Now()
	err := db.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, apperrors.ErrPoolExhausted)
	assert.False(t, called)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestWithSession_CallerCancellationIsNotExhaustion(t *testing.T) {
	db := newTestPool(t, poolOptions{size: 1, overflow: 0, timeout: 10 * time.Second})
	holdSession(t, db)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := db.WithSession(ctx, func(ctx context.Context, s *database.Session) error {
		return nil
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrPoolExhausted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecycle_IdleConnectionIsReplaced(t *testing.T) {
	db := newTestPool(t, poolOptions{size: 1, overflow: 0, recycle: 300 * time.Millisecond, timeout: 5 * time.Second})

	first := backendPID(t, db)
	assert.Equal(t, first, backendPID(t, db), "connection reused within the recycle interval")

	time.Sleep(700 * time.Millisecond)

	assert.NotEqual(t, first, backendPID(t, db), "idle connection handed out after recycle interval")
}

func TestPrePing_DeadConnectionIsReplaced(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	db := newTestPool(t, poolOptions{size: 1, overflow: 0, prePing: true, timeout: 5 * time.Second})

	victim := backendPID(t, db)

	ctx := context.Background()
	admin, err := pgx.Connect(ctx, testDB.ConnStr)
	require.NoError(t, err)
	defer admin.Close(ctx)

	var terminated bool
	require.NoError(t, admin.QueryRow(ctx, "SELECT pg_terminate_backend($1)", victim).Scan(&terminated))
	require.True(t, terminated)

	// Give the server a moment to tear the backend down.
	time.Sleep(100 * time.Millisecond)

	replacement := backendPID(t, db)
	assert.NotEqual(t, victim, replacement)
}

func TestNewConnection_ReinitializeAfterClose(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()
	cfg := &database.Config{URL: testDB.ConnStr, SSLMode: "disable", PoolSize: 1}

	db, err := database.NewConnection(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Ping(ctx))
	db.Close()
	db.Close()

	err = db.Ping(ctx)
	assert.Error(t, err, "closed pool must not hand out sessions")

	db, err = database.NewConnection(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Ping(ctx))
}

func TestWithSessionContext_Middleware(t *testing.T) {
	db := newTestPool(t, poolOptions{size: 1, overflow: 0, timeout: 200 * time.Millisecond})

	handler := database.WithSessionContext(db, zap.NewNop())(func(w http.ResponseWriter, r *http.Request) {
		s, ok := database.GetSession(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if err := s.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(0), db.PoolStats().AcquiredConns)

	holdSession(t, db)

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database_busy")
}
