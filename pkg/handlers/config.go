package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/taskflow-dev/todo-backend/pkg/config"
)

// ConfigResponse contains public configuration for the frontend.
type ConfigResponse struct {
	FrontendURL string `json:"frontend_url"`
	BackendURL  string `json:"backend_url"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// ConfigHandler handles configuration requests.
type ConfigHandler struct {
	config *config.Config
	logger *zap.Logger
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(cfg *config.Config, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		logger: logger,
	}
}

// RegisterRoutes registers the config handler's routes on the given mux.
func (h *ConfigHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/config", h.Get)
}

// Get returns public configuration for the frontend.
// GET /api/config
// Secrets (auth secret, database URL) are never part of the response.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		FrontendURL: h.config.FrontendURL,
		BackendURL:  h.config.BackendURL,
		Version:     h.config.Version,
		Environment: h.config.Env,
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode config response", zap.Error(err))
		return
	}

	h.logger.Debug("Config request served", zap.String("remote_addr", r.RemoteAddr))
}
