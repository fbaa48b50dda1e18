package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/1sec-project/breachline/internal/analysis"
	"github.com/1sec-project/breachline/internal/anomaly"
	"github.com/1sec-project/breachline/internal/baseline"
	"github.com/1sec-project/breachline/internal/core"
	"github.com/1sec-project/breachline/internal/ingest"
	"github.com/1sec-project/breachline/internal/store"
	"github.com/1sec-project/breachline/internal/timeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// DefaultTenant names datasets posted without a tenant query parameter.
const DefaultTenant = "default"

// Server is the breachline REST API server.
type Server struct {
	cfg      *core.Config
	analyzer *analysis.Analyzer
	loader   *ingest.Loader
	store    *store.Store
	gatherer prometheus.Gatherer
	logs     *core.LogRing
	router   chi.Router
	server   *http.Server
	logger   zerolog.Logger
	started  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithStore persists every /analyze report and enables the /runs routes.
func WithStore(st *store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogRing serves recent log lines from ring on /api/v1/logs.
func WithLogRing(ring *core.LogRing) Option {
	return func(s *Server) { s.logs = ring }
}

// NewServer creates a new API server.
func NewServer(cfg *core.Config, analyzer *analysis.Analyzer, loader *ingest.Loader, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		analyzer: analyzer,
		loader:   loader,
		gatherer: prometheus.DefaultGatherer,
		logger:   logger.With().Str("component", "api_server").Logger(),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(s.cfg.Server.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.cfg, s.logger))
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.Throttle(16))
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/baselines", s.handleBaselines)
			r.Post("/anomalies", s.handleAnomalies)
			r.Post("/timeline", s.handleTimeline)
			r.Post("/incident", s.handleIncident)
			r.Get("/config", s.handleConfig)
			r.Get("/logs", s.handleLogs)

			r.Get("/runs", s.handleRuns)
			r.Get("/runs/{runID}/anomalies", s.handleRunAnomalies)
			r.Get("/runs/{runID}/incident", s.handleRunIncident)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// Start begins serving the API.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server starting")
	if s.cfg.AuthEnabled() {
		s.logger.Info().Int("keys", len(s.cfg.Server.APIKeys)).Msg("API authentication enabled")
	} else {
		s.logger.Warn().Msg("API authentication disabled - set server.api_keys or BREACHLINE_API_KEY")
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()
	return nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"store":     s.store != nil,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.analyzer.Config())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ds, stats, ok := s.decodeDataset(w, r)
	if !ok {
		return
	}
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		tenant = DefaultTenant
	}

	report, err := s.analyzer.Run(r.Context(), tenant, ds)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.store != nil {
		if _, err := s.store.SaveReport(r.Context(), tenant, report); err != nil {
			s.logger.Error().Err(err).Str("run_id", report.RunID).Msg("failed to store report")
			writeError(w, http.StatusInternalServerError, "report could not be stored")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report": report,
		"ingest": stats,
	})
}

func (s *Server) handleBaselines(w http.ResponseWriter, r *http.Request) {
	ds, _, ok := s.decodeDataset(w, r)
	if !ok {
		return
	}
	baselines := s.analyzer.Baselines(ds)
	writeJSON(w, http.StatusOK, map[string]any{
		"baselines": baselines,
		"summary":   baseline.Summarize(baselines),
	})
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("group_by")
	if by != "" {
		if _, err := anomaly.Aggregate(nil, anomaly.GroupBy(by)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	ds, _, ok := s.decodeDataset(w, r)
	if !ok {
		return
	}
	anomalies := s.analyzer.Anomalies(ds)
	resp := map[string]any{
		"anomalies": anomalies,
		"summary":   anomaly.Summarize(anomalies),
	}
	if by != "" {
		groups, _ := anomaly.Aggregate(anomalies, anomaly.GroupBy(by))
		resp["groups"] = groups
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := timeline.ParseBound(q.Get("from"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := timeline.ParseBound(q.Get("to"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ds, _, ok := s.decodeDataset(w, r)
	if !ok {
		return
	}
	events := timeline.Filter{UserID: q.Get("user"), From: from, To: to}.Apply(s.analyzer.Timeline(ds))
	writeJSON(w, http.StatusOK, map[string]any{
		"events":  events,
		"summary": timeline.Summarize(events),
	})
}

func (s *Server) handleIncident(w http.ResponseWriter, r *http.Request) {
	ds, _, ok := s.decodeDataset(w, r)
	if !ok {
		return
	}
	it := s.analyzer.Incident(ds, s.analyzer.Baselines(ds))
	writeJSON(w, http.StatusOK, map[string]any{
		"incident": it,
		"summary":  it.Summary(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			limit = l
		}
	}
	runs, err := s.store.ListRuns(r.Context(), r.URL.Query().Get("tenant"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "total": len(runs)})
}

func (s *Server) handleRunAnomalies(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	anomalies, err := s.store.Anomalies(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"anomalies": anomalies, "total": len(anomalies)})
}

func (s *Server) handleRunIncident(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	it, err := s.store.Incident(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeError(w, http.StatusServiceUnavailable, "log capture not enabled")
		return
	}
	n := 100
	if v := r.URL.Query().Get("n"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = min(l, 1000)
	}
	entries := s.logs.Recent(n, r.URL.Query().Get("level"))
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries, "total": len(entries)})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no results store configured")
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// decodeDataset reads a dataset bundle from the request body. It writes the
// error response itself and reports whether the handler should continue.
func (s *Server) decodeDataset(w http.ResponseWriter, r *http.Request) (*core.Dataset, ingest.Stats, bool) {
	maxMB := s.cfg.Server.MaxBodyMB
	if maxMB <= 0 {
		maxMB = 32
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxMB)<<20)
	ds, stats, err := s.loader.DecodeBundle(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d MB", maxMB))
			return nil, stats, false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, stats, false
	}
	return ds, stats, true
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// authMiddleware enforces API key authentication. Keys come from config
// (server.api_keys) or BREACHLINE_API_KEY. With no keys configured every
// request is allowed.
func authMiddleware(cfg *core.Config, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.AuthEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if auth := r.Header.Get("Authorization"); auth != "" {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
			if key == "" {
				writeError(w, http.StatusUnauthorized, "missing authentication - provide Authorization: Bearer <key> or X-API-Key header")
				return
			}
			if !cfg.ValidateAPIKey(key) {
				logger.Warn().Str("path", r.URL.Path).Str("ip", r.RemoteAddr).Msg("invalid API key")
				writeError(w, http.StatusForbidden, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Debug().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
