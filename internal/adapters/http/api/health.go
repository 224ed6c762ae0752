package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

type healthResponse struct {
	Status string `json:"status"`
	Epoch  int64  `json:"epoch"`
}

// handleHealth handles GET /healthz. The process is healthy once it serves;
// an empty store is reported as epoch 0.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	o := s.svc.SyncStatus(r.Context())
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Epoch: int64(o.Epoch)})
}

func metricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
