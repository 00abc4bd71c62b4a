package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/scorebot/pkg/metrics"
)

// HealthHandler handles liveness and metrics requests.
type HealthHandler struct {
	appName string
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(appName string) *HealthHandler {
	return &HealthHandler{
		appName: appName,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

type healthResponse struct {
	Status string `json:"status"`
	App    string `json:"app"`
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", App: h.appName})
}

// HandleMetrics serves the custom Prometheus registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
