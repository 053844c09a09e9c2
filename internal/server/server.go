package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/mnemo/internal/store"
	"github.com/lazypower/mnemo/internal/tools"
)

// SessionHeader names the request header carrying the caller's session ID.
const SessionHeader = "X-Session-ID"

// Server is the mnemo HTTP API server.
type Server struct {
	db      *store.DB
	tools   *tools.Toolbox
	log     *log.Logger
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the given database and toolbox.
func New(db *store.DB, tb *tools.Toolbox, logger *log.Logger, version string) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		db:      db,
		tools:   tb,
		log:     logger,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/tools", s.handleListTools)
		r.Post("/tools/{name}", s.handleCallTool)

		// Read-only shortcuts over the same tools.
		r.Get("/search", s.handleSearch)
		r.Get("/projects", s.handleProjects)
		r.Get("/memories/{id}", s.handleGetMemory)
		r.Get("/memories/{id}/graph", s.handleGraph)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.PingContext(r.Context()); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a tool result to an HTTP status.
func statusFor(res tools.Result) int {
	if res.Success() {
		return http.StatusOK
	}
	switch res.Code() {
	case tools.CodeInvalidArgument:
		return http.StatusBadRequest
	case tools.CodeNotFound:
		return http.StatusNotFound
	case tools.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
