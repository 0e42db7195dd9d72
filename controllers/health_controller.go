package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"loancollect/utils"
)

// HealthController serves the liveness check and the metrics snapshot
type HealthController struct {
	metrics *utils.Metrics
}

func NewHealthController(metrics *utils.Metrics) *HealthController {
	return &HealthController{metrics: metrics}
}

func (c *HealthController) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", c.Health).Methods(http.MethodGet)
	router.HandleFunc("/api/metrics", c.Metrics).Methods(http.MethodGet)
}

// Health reports that the API is up
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "API running"})
}

// Metrics returns the current request and batch counters
func (c *HealthController) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.metrics.GetMetricsSnapshot())
}
