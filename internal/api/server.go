package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/webcrawler/internal/config"
	"github.com/JakeFAU/webcrawler/internal/crawler"
	runid "github.com/JakeFAU/webcrawler/internal/id/uuid"
	"github.com/JakeFAU/webcrawler/internal/metrics"
)

// Submitter accepts crawl runs for asynchronous execution.
type Submitter interface {
	Submit(ctx context.Context, params crawler.RunParameters) (string, error)
}

// ProfileWriter dumps accumulated profiling data.
type ProfileWriter interface {
	WriteData(w io.Writer) error
}

// Server wires HTTP handlers to the dispatcher and run store.
type Server struct {
	router    chi.Router
	runs      crawler.RunStore
	submitter Submitter
	profile   ProfileWriter
	defaults  crawler.RunParameters
	draining  atomic.Bool
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. profile may be nil.
func NewServer(
	runs crawler.RunStore,
	submitter Submitter,
	profile ProfileWriter,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		runs:      runs,
		submitter: submitter,
		profile:   profile,
		defaults:  cfg.RunParameters(),
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(timeoutMiddleware(cfg.Server.RequestTimeout))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/crawls", func(r chi.Router) {
			r.Post("/", s.submitCrawl)
			r.Get("/{run_id}", s.getCrawl)
		})
		r.Get("/profile", s.getProfile)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Drain makes readyz fail so load balancers stop routing new runs here.
func (s *Server) Drain() {
	s.draining.Store(true)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	runID, err := s.submitter.Submit(r.Context(), req.parameters(s.defaults))
	if err != nil {
		var cfgErr *crawler.ConfigurationError
		status := http.StatusInternalServerError
		switch {
		case errors.As(err, &cfgErr):
			status = http.StatusBadRequest
		case errors.Is(err, crawler.ErrQueueClosed), errors.Is(err, crawler.ErrQueueFull):
			status = http.StatusServiceUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusRequestTimeout
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) getCrawl(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	if !runid.Valid(runID) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, crawler.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("get run failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) getProfile(w http.ResponseWriter, _ *http.Request) {
	if s.profile == nil {
		writeError(w, http.StatusNotFound, "profiling disabled")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.profile.WriteData(w); err != nil {
		s.logger.Error("write profile failed", zap.Error(err))
	}
}

// crawlRequest is the POST /v1/crawls body. Omitted knobs take the configured defaults.
type crawlRequest struct {
	StartPages       []string `json:"start_pages"`
	MaxDepth         *int     `json:"max_depth"`
	TimeoutSeconds   *float64 `json:"timeout_seconds"`
	PopularWordCount *int     `json:"popular_word_count"`
	Parallelism      *int     `json:"parallelism"`
	IgnoredURLs      []string `json:"ignored_urls"`
}

func (req crawlRequest) parameters(defaults crawler.RunParameters) crawler.RunParameters {
	params := crawler.RunParameters{
		StartPages:       req.StartPages,
		MaxDepth:         valueOrDefault(req.MaxDepth, defaults.MaxDepth),
		TimeoutSeconds:   valueOrDefault(req.TimeoutSeconds, defaults.TimeoutSeconds),
		PopularWordCount: valueOrDefault(req.PopularWordCount, defaults.PopularWordCount),
		Parallelism:      valueOrDefault(req.Parallelism, defaults.Parallelism),
		IgnoredURLs:      req.IgnoredURLs,
	}
	if params.IgnoredURLs == nil {
		params.IgnoredURLs = append([]string(nil), defaults.IgnoredURLs...)
	}
	return params
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
