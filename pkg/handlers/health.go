package handlers

import (
	"fmt"
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/taskflow-dev/todo-backend/pkg/apperrors"
	"github.com/taskflow-dev/todo-backend/pkg/config"
	"github.com/taskflow-dev/todo-backend/pkg/database"
	"github.com/taskflow-dev/todo-backend/pkg/logging"
	"github.com/taskflow-dev/todo-backend/pkg/metrics"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// ReadyResponse reports database reachability and pool usage.
type ReadyResponse struct {
	Status string            `json:"status"`
	Pool   metrics.PoolStats `json:"pool"`
}

// HealthHandler handles health check, ping and readiness endpoints.
type HealthHandler struct {
	cfg    *config.Config
	db     *database.DB
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler with the given configuration.
// db may be nil, in which case /ready is not registered.
func NewHealthHandler(cfg *config.Config, db *database.DB, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, db: db, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
	if h.db != nil {
		mux.HandleFunc("GET /ready", database.WithSessionContext(h.db, h.logger)(h.Ready))
	}
}

// Health handles GET /health requests.
// Liveness only; it never touches the database.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "todo-backend",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

// Ready handles GET /ready requests.
// It runs inside WithSessionContext and pings the borrowed session.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	session, ok := database.GetSession(r.Context())
	if !ok || session == nil {
		h.logger.Error("Ready called without a database session")
		if err := ErrorResponse(w, http.StatusInternalServerError, "database_error", "Database session not available"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := session.Ping(r.Context()); err != nil {
		h.logger.Warn("Readiness ping failed", zap.String("error", logging.SanitizeError(err)))
		if err := WriteAppError(w, fmt.Errorf("%w: %v", apperrors.ErrDatabaseUnreachable, err)); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ReadyResponse{Status: "ok"}
	if h.db != nil {
		response.Pool = h.db.PoolStats()
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ready response", zap.Error(err))
	}
}
