// Package server exposes forecast runs over HTTP.
//
// GET /forecast starts a run and answers with its result once evaluation has
// completed. Only one run may be in flight; concurrent requests get 409.
// An optional rate limit answers 429 before a run is attempted.
// Completed runs are served from the run history under /runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"energy-forecast/internal/forecast"
	"energy-forecast/internal/series"
	"energy-forecast/internal/storage"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Runner performs one complete forecast run.
type Runner interface {
	Run(ctx context.Context) (*forecast.Result, error)
}

// RunStore serves the run history.
type RunStore interface {
	GetRun(id string) (*forecast.Result, error)
	ListRuns(limit int) ([]storage.RunInfo, error)
}

// MetricsInterface defines metrics methods needed by the server
type MetricsInterface interface {
	HTTPRequestInc(route string, code int)
}

// Server is the forecast HTTP API.
type Server struct {
	runner  Runner
	store   RunStore
	metrics MetricsInterface
	router  *mux.Router
	server  *http.Server

	running sync.Mutex    // held while a run is in flight
	limiter *rate.Limiter // nil means forecast requests are not rate limited
}

// New creates the server. store, metricsHandler and metrics may be nil.
func New(runner Runner, store RunStore, metricsHandler http.Handler, metrics MetricsInterface, port int) *Server {
	s := &Server{
		runner:  runner,
		store:   store,
		metrics: metrics,
	}

	r := mux.NewRouter()
	r.HandleFunc("/forecast", s.handleForecast).Methods("GET")
	r.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	r.HandleFunc("/runs/{id}", s.handleGetRun).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods("GET")
	}
	s.router = r

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No write timeout: a forecast request lasts as long as the run.
	}
	return s
}

// SetForecastRateLimit limits GET /forecast to perMinute requests per
// minute with the given burst. Requests over the limit get 429. A
// non-positive perMinute removes the limit.
func (s *Server) SetForecastRateLimit(perMinute float64, burst int) {
	if perMinute <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(perMinute/60), max(burst, 1))
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown API server")
		}
	}()

	log.Info().Str("address", s.server.Addr).Msg("Starting API server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	const route = "/forecast"

	if s.limiter != nil && !s.limiter.Allow() {
		s.writeError(w, route, http.StatusTooManyRequests, errors.New("forecast rate limit exceeded"))
		return
	}
	if !s.running.TryLock() {
		s.writeError(w, route, http.StatusConflict, errors.New("a forecast run is already in progress"))
		return
	}
	defer s.running.Unlock()

	result, err := s.runner.Run(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, series.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		s.writeError(w, route, status, err)
		return
	}

	if includeRecords, err := strconv.ParseBool(r.URL.Query().Get("records")); err == nil && !includeRecords {
		trimmed := *result
		trimmed.Records = nil
		result = &trimmed
	}
	s.writeJSON(w, route, http.StatusOK, result)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	const route = "/runs"

	if s.store == nil {
		s.writeError(w, route, http.StatusServiceUnavailable, errors.New("run history is not configured"))
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, route, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(limit)
	if err != nil {
		s.writeError(w, route, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []storage.RunInfo{}
	}
	s.writeJSON(w, route, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	const route = "/runs/{id}"

	if s.store == nil {
		s.writeError(w, route, http.StatusServiceUnavailable, errors.New("run history is not configured"))
		return
	}

	result, err := s.store.GetRun(mux.Vars(r)["id"])
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.writeError(w, route, status, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, result)
}

func (s *Server) writeJSON(w http.ResponseWriter, route string, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("route", route).Msg("Failed to encode response")
		status = http.StatusInternalServerError
		data = []byte(`{"error":"failed to encode response"}`)
	}

	if s.metrics != nil {
		s.metrics.HTTPRequestInc(route, status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, route string, status int, err error) {
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("route", route).Int("status", status).Msg("Request failed")

	s.writeJSON(w, route, status, map[string]string{"error": err.Error()})
}
