package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsHandler exposes the Prometheus registry.
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler serves the metrics gathered from g.
// Collection errors are logged and the remaining metrics are still served.
func NewMetricsHandler(g prometheus.Gatherer, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		handler: promhttp.HandlerFor(g, promhttp.HandlerOpts{
			ErrorLog:      zap.NewStdLog(logger.Named("metrics")),
			ErrorHandling: promhttp.ContinueOnError,
		}),
	}
}

// RegisterRoutes registers GET /metrics on the given mux.
func (h *MetricsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /metrics", h.handler)
}
