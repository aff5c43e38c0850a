// Package web is the interactive JSON surface the front end drives: one
// capture session plus the meal history, daily progress, and goal endpoints.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/kingpromise/promeals/internal/analyzer"
	"github.com/kingpromise/promeals/internal/camera"
	"github.com/kingpromise/promeals/internal/capture"
	"github.com/kingpromise/promeals/internal/ledger"
	"github.com/kingpromise/promeals/internal/mediastore"
	"github.com/kingpromise/promeals/internal/session"
)

type Server struct {
	session *session.Session
	ledger  *ledger.Ledger
	media   mediastore.MediaStore
	mux     *http.ServeMux
	logger  *slog.Logger
}

func NewServer(sess *session.Session, led *ledger.Ledger, media mediastore.MediaStore, logger *slog.Logger) *Server {
	s := &Server{
		session: sess,
		ledger:  led,
		media:   media,
		mux:     http.NewServeMux(),
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /session", s.handleGetSession)
	s.mux.HandleFunc("GET /session/image", s.handleGetSessionImage)
	s.mux.HandleFunc("POST /session/image", s.handleSelectImage)
	s.mux.HandleFunc("POST /session/camera", s.handleStartCamera)
	s.mux.HandleFunc("POST /session/camera/capture", s.handleCaptureFrame)
	s.mux.HandleFunc("DELETE /session/camera", s.handleCancelCamera)
	s.mux.HandleFunc("POST /session/save", s.handleSaveMeal)
	s.mux.HandleFunc("POST /session/discard", s.handleDiscardResult)

	s.mux.HandleFunc("GET /meals", s.handleListMeals)
	s.mux.HandleFunc("GET /meals/{id}/image", s.handleGetMealImage)
	s.mux.HandleFunc("GET /progress", s.handleGetProgress)

	s.mux.HandleFunc("GET /goals", s.handleGetGoals)
	s.mux.HandleFunc("POST /goals/adjust", s.handleAdjustGoal)
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeError maps pipeline errors to HTTP statuses. Every error here is
// terminal for one user action, never for the session.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var unavailable *camera.UnavailableError
	var failed *analyzer.FailedError

	switch {
	case errors.Is(err, capture.ErrUnsupportedInput):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrNoActiveCamera),
		errors.Is(err, session.ErrNoResult),
		errors.Is(err, session.ErrCancelled):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case session.IsNotReady(err):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Reason: "not-ready"})
	case errors.As(err, &unavailable):
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Reason: string(unavailable.Reason)})
	case errors.As(err, &failed):
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
