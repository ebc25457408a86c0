package database

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/taskflow-dev/todo-backend/pkg/apperrors"
)

// WithSessionContext creates middleware that borrows one session per request.
// The session is available through GetSession and released after the handler
// returns. Acquisition failures are already logged by WithSession.
func WithSessionContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			err := db.WithSession(r.Context(), func(ctx context.Context, s *Session) error {
				next(w, r.WithContext(SetSession(ctx, s)))
				return nil
			})
			if err == nil {
				return
			}

			status, code, message := http.StatusInternalServerError, "database_error", "Database connection error"
			switch {
			case errors.Is(err, apperrors.ErrPoolExhausted):
				status, code, message = http.StatusServiceUnavailable, "database_busy", "Database is busy, try again later"
			case errors.Is(err, context.Canceled):
				// Client went away; nothing useful to write.
				logger.Debug("Request canceled while waiting for a database session",
					zap.String("path", r.URL.Path))
				return
			}
			writeError(w, status, code, message)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
