// Package server exposes chat sessions over HTTP: a JSON API, an HTML page per
// session and a WebSocket stream of live updates.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"NewportChat/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Factory creates a new session for the given widget
type Factory func(kind session.Kind) (*session.Session, error)

type Server struct {
	registry    *session.Registry
	newSession  Factory
	logger      *slog.Logger
	maxSessions int
}

// Option configures a Server
type Option func(*Server)

// WithMaxSessions rejects new sessions once n are live; zero means no limit
func WithMaxSessions(n int) Option {
	return func(s *Server) {
		s.maxSessions = n
	}
}

func New(registry *session.Registry, factory Factory, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		registry:   registry,
		newSession: factory,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed, instrumented HTTP handler
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.registry.Count()})
	})

	r.Get("/sessions/{id}", s.handlePage)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleDelete)
			r.Put("/draft", s.handleDraft)
			r.Post("/submit", s.handleSubmit)
			r.Post("/messages", s.handleSend)
			r.Post("/clear", s.handleClear)
			r.Post("/focus", s.handleFocus)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return otelhttp.NewHandler(r, "newportchat")
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug("handled request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) errorResponse {
	return errorResponse{
		Error: apiError{
			Code:      code,
			Message:   message,
			RequestID: middleware.GetReqID(r.Context()),
		},
	}
}
