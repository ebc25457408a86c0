package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taskflow-dev/todo-backend/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// statusForError maps application error kinds to an HTTP status and error code.
// Unknown errors map to 500 and never expose their text.
func statusForError(err error) (int, string, string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found", "Resource not found"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict", "Resource already exists"
	case errors.Is(err, apperrors.ErrPoolExhausted):
		return http.StatusServiceUnavailable, "database_busy", "Database is busy, try again later"
	case errors.Is(err, apperrors.ErrDatabaseUnreachable):
		return http.StatusServiceUnavailable, "database_unreachable", "Database did not answer"
	default:
		return http.StatusInternalServerError, "internal_error", "Internal server error"
	}
}

// WriteAppError writes err as a JSON error response using its kind.
func WriteAppError(w http.ResponseWriter, err error) error {
	status, code, message := statusForError(err)
	return ErrorResponse(w, status, code, message)
}
