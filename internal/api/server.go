// Package api exposes the HTTP interface for the search service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stylehound/stylehound/internal/ratelimit"
	"github.com/stylehound/stylehound/internal/search"
	"github.com/stylehound/stylehound/internal/state"
	"github.com/stylehound/stylehound/internal/telemetry"
)

// Config controls HTTP server behavior.
type Config struct {
	// RequestTimeout bounds synchronous handler work; the search pipeline
	// itself runs past it.
	RequestTimeout time.Duration
	// RateLimitPathPrefix selects which routes the limiter gates.
	RateLimitPathPrefix string
}

const defaultRequestTimeout = 60 * time.Second

// Server wires HTTP handlers to the orchestrator.
type Server struct {
	router chi.Router
	orch   *search.Orchestrator
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. limiter may be nil
// to disable rate limiting.
func NewServer(orch *search.Orchestrator, limiter *ratelimit.Limiter, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.RateLimitPathPrefix == "" {
		cfg.RateLimitPathPrefix = "/api/searches"
	}
	s := &Server{orch: orch, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.RequestTimeout))
	r.Use(telemetry.Middleware)
	if limiter != nil {
		r.Use(ratelimit.Middleware(limiter, cfg.RateLimitPathPrefix, logger))
	}

	r.Get("/", s.root)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/api/searches", func(r chi.Router) {
		r.Post("/", s.submitSearch)
		r.Get("/{search_id}", s.getSearchStatus)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "stylehound",
		"status":  "running",
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitResponse struct {
	SearchID             string `json:"search_id"`
	Status               string `json:"status"`
	EstimatedTimeSeconds int    `json:"estimated_time_seconds"`
	Timestamp            string `json:"timestamp"`
}

func (s *Server) submitSearch(w http.ResponseWriter, r *http.Request) {
	// Allow some multipart overhead beyond the image ceiling itself.
	r.Body = http.MaxBytesReader(w, r.Body, search.MaxImageBytes+1<<20)
	if err := r.ParseMultipartForm(search.MaxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			s.logger.Warn("close upload failed", zap.Error(cerr))
		}
	}()
	image, err := io.ReadAll(io.LimitReader(file, search.MaxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}
	stores := r.MultipartForm.Value["stores"]

	sub, err := s.orch.Submit(r.Context(), image, stores)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, search.ErrEmptyImage),
			errors.Is(err, search.ErrImageTooLarge),
			errors.Is(err, search.ErrBadFormat),
			errors.Is(err, search.ErrUnknownStore):
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		SearchID:             sub.ID,
		Status:               string(search.StatusProcessing),
		EstimatedTimeSeconds: sub.EstimatedSeconds,
		Timestamp:            sub.Timestamp.UTC().Format(time.RFC3339),
	})
}

type storeResultResponse struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	TimeMs int64  `json:"time_ms"`
}

type statusResponse struct {
	SearchID             string                `json:"search_id"`
	Status               string                `json:"status"`
	ElapsedTimeMs        int64                 `json:"elapsed_time_ms"`
	StoresSearched       []storeResultResponse `json:"stores_searched"`
	AttributesRecognized []search.Attribute    `json:"attributes_recognized"`
	ResultCount          int                   `json:"result_count"`
	Timestamp            string                `json:"timestamp"`
}

func (s *Server) getSearchStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "search_id")
	rec, err := s.orch.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			writeError(w, http.StatusNotFound, "search not found")
			return
		}
		s.logger.Error("load search record failed", zap.String("search_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load search record")
		return
	}

	stores := make([]storeResultResponse, 0, len(rec.Stores))
	for _, st := range rec.Stores {
		stores = append(stores, storeResultResponse{
			Name:   st.Name,
			Status: string(st.Status),
			TimeMs: st.TimeMs,
		})
	}
	attrs := rec.Attributes
	if attrs == nil {
		attrs = []search.Attribute{}
	}
	writeJSON(w, http.StatusOK, statusResponse{
		SearchID:             rec.ID,
		Status:               string(rec.Status),
		ElapsedTimeMs:        rec.ElapsedMs,
		StoresSearched:       stores,
		AttributesRecognized: attrs,
		ResultCount:          rec.ResultCount,
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
	})
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

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
