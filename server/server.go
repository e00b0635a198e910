package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pageforge/session"
)

// Server wires the orchestrator to its HTTP surface.
type Server struct {
	cfg    *Config
	orch   *session.Orchestrator
	logger *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// New creates a server around an orchestrator.
func New(cfg *Config, orch *session.Orchestrator, opts ...ServerOption) *Server {
	s := &Server{cfg: cfg, orch: orch, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/clone", func(r chi.Router) {
		r.Post("/session/start", s.handleStart)
		r.Post("/session/finish", s.handleFinish)
		r.Post("/session/{sessionID}/chunk", s.handleChunk)
		r.Get("/session/{sessionID}", s.handleGet)
		r.Get("/sessions", s.handleList)
		r.Get("/progress", s.handleProgress)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
