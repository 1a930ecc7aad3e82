package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshdurbin/lift-mcp/internal/logging"
)

// HealthResponse is served on /health
type HealthResponse struct {
	Status      string   `json:"status"`
	Version     string   `json:"version"`
	LoadedUsers []string `json:"loaded_users"`
}

// Router serves /health, /metrics and the MCP SSE transport on every
// other path.
func (s *Server) Router(gatherer prometheus.Gatherer) *mux.Router {
	r := MetricsRouter(gatherer)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	sse := mcp.NewSSEHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
	r.PathPrefix("/").Handler(sse)
	return r
}

// MetricsRouter serves only /metrics, for a dedicated metrics listener
func MetricsRouter(gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	users := s.registry.Users()
	if users == nil {
		users = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(HealthResponse{
		Status:      "ok",
		Version:     serverVersion,
		LoadedUsers: users,
	}); err != nil {
		logging.Warn("writing health response", "error", err)
	}
}
