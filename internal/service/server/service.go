package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/logger"
	"github.com/oshokin/node-sentinel/internal/metrics"
	backuprepo "github.com/oshokin/node-sentinel/internal/repository/backup"
	"github.com/oshokin/node-sentinel/internal/repository/history"
	"github.com/oshokin/node-sentinel/internal/service/health"
	"github.com/oshokin/node-sentinel/internal/service/watch"
	"github.com/oshokin/node-sentinel/internal/version"
)

type (
	// Dependencies are the collaborators the monitoring API reads from.
	// Watch may be nil when release checking is not configured.
	Dependencies struct {
		Components []domain.Component
		Health     health.Checker
		Watch      watch.Watcher
		History    history.Recorder
		Backups    backuprepo.Store
		Metrics    *metrics.Metrics
	}

	// Server is the read-only monitoring HTTP surface. Mutating operations
	// stay on the CLI.
	Server struct {
		deps           Dependencies
		router         *mux.Router
		metricsHandler http.Handler
	}

	// healthzResponse is the aggregate health body.
	healthzResponse struct {
		Healthy    bool            `json:"healthy"`
		Components []health.Report `json:"components"`
	}

	// componentStatus joins a health report with release information.
	componentStatus struct {
		Component       string `json:"component"`
		Version         string `json:"version,omitempty"`
		ServiceActive   bool   `json:"service_active"`
		Healthy         bool   `json:"healthy"`
		Message         string `json:"message,omitempty"`
		LatestVersion   string `json:"latest_version,omitempty"`
		UpdateAvailable bool   `json:"update_available"`
	}

	// versionResponse is the build metadata body.
	versionResponse struct {
		Version   string `json:"version"`
		Commit    string `json:"commit"`
		BuildTime string `json:"build_time"`
	}

	// errorResponse is the body for every non-2xx answer.
	errorResponse struct {
		Error string `json:"error"`
	}
)

// New creates a Server with its routes registered. Metrics are served from a
// registry owned by this server, so multiple instances never collide.
func New(deps Dependencies) *Server {
	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
	}

	registry := prometheus.NewRegistry()
	if deps.Metrics != nil {
		registry.MustRegister(deps.Metrics)
	}

	s.metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	s.routes()

	return s
}

// Router exposes the configured handler for serving and for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metricsHandler).Methods(http.MethodGet)

	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/backups", s.handleBackups).Methods(http.MethodGet)
	api.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
}

// handleHealthz reports aggregate health: 200 only when every component is
// healthy, 503 otherwise, with per-component reports in the body either way.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reports := s.deps.Health.CheckAll(ctx, s.deps.Components)

	healthy := true

	for _, report := range reports {
		if !report.Healthy {
			healthy = false
			break
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(ctx, w, status, healthzResponse{Healthy: healthy, Components: reports})
}

// handleStatus reports per-component state: installed version, service
// activity, and what the release watcher knows about newer versions.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reports := s.deps.Health.CheckAll(ctx, s.deps.Components)

	updates := make(map[string]watch.Update)

	if s.deps.Watch != nil {
		for _, update := range s.deps.Watch.CheckAll(ctx, s.deps.Components) {
			updates[update.Component] = update
		}
	}

	statuses := make([]componentStatus, 0, len(reports))

	for _, report := range reports {
		status := componentStatus{
			Component:     report.Component,
			Version:       report.Version,
			ServiceActive: report.ServiceActive,
			Healthy:       report.Healthy,
			Message:       report.Message,
		}

		if update, ok := updates[report.Component]; ok {
			status.LatestVersion = update.LatestVersion
			status.UpdateAvailable = update.UpdateAvailable
		}

		statuses = append(statuses, status)
	}

	s.writeJSON(ctx, w, http.StatusOK, statuses)
}

// handleHistory returns recorded outcomes, newest first. A limit query
// parameter caps the count.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(ctx, w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}

		limit = parsed
	}

	outcomes, err := s.deps.History.List(ctx, limit)
	if err != nil {
		logger.ErrorKV(ctx, "History read failed", "error", err)
		s.writeError(ctx, w, http.StatusInternalServerError, "history unavailable")

		return
	}

	// The body stays a JSON array even when no runs are recorded.
	if outcomes == nil {
		outcomes = []*domain.Outcome{}
	}

	s.writeJSON(ctx, w, http.StatusOK, outcomes)
}

// handleBackups returns backup records, newest first, optionally filtered by
// a component query parameter.
func (s *Server) handleBackups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := s.deps.Backups.List(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Backup listing failed", "error", err)
		s.writeError(ctx, w, http.StatusInternalServerError, "backups unavailable")

		return
	}

	component := r.URL.Query().Get("component")

	filtered := make([]*domain.Backup, 0, len(records))

	for _, record := range records {
		if component == "" || record.Component == component {
			filtered = append(filtered, record)
		}
	}

	s.writeJSON(ctx, w, http.StatusOK, filtered)
}

// handleVersion reports the build metadata of the running sentinel.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(r.Context(), w, http.StatusOK, versionResponse{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildTime: version.BuildTime,
	})
}

func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WarnKV(ctx, "Response write failed", "error", err)
	}
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	s.writeJSON(ctx, w, status, errorResponse{Error: message})
}
