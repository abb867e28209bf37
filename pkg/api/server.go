package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hubgate/hubgate/pkg/auth"
	"github.com/hubgate/hubgate/pkg/config"
	"github.com/hubgate/hubgate/pkg/github"
	"github.com/hubgate/hubgate/pkg/middleware"
	"github.com/hubgate/hubgate/pkg/observability"
)

// Server is the HTTP API server. Routes are mode-aware: user management
// endpoints only exist in multi-user mode, and the login flow only
// exists when the active strategy drives one.
type Server struct {
	cfg      *config.Config
	log      *observability.Logger
	metrics  *observability.Metrics
	guard    *auth.Guard
	users    auth.UserStore
	audit    *auth.AuditLogger
	provider *github.Client
	health   *observability.HealthChecker
	router   *mux.Router
}

// Params carries the server dependencies. Users and DB are nil outside
// multi-user mode; Metrics and Audit may be nil.
type Params struct {
	Config   *config.Config
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Guard    *auth.Guard
	Users    auth.UserStore
	Audit    *auth.AuditLogger
	Provider *github.Client
	DB       *sql.DB
}

// NewServer creates the API server and wires all routes.
func NewServer(p Params) *Server {
	s := &Server{
		cfg:      p.Config,
		log:      p.Logger,
		metrics:  p.Metrics,
		guard:    p.Guard,
		users:    p.Users,
		audit:    p.Audit,
		provider: p.Provider,
		health:   observability.NewHealthChecker(p.DB),
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recovery(s.log))
	if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware)
	}

	s.router.HandleFunc("/healthz", s.health.Liveness).Methods("GET")
	s.router.HandleFunc("/readyz", s.health.Readiness).Methods("GET")
	if s.metrics != nil && s.cfg.Observability.MetricsEnabled {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	authHandlers := NewAuthHandlers(s.cfg, s.guard, s.log)
	authHandlers.RegisterRoutes(api)

	repoHandlers := NewRepoHandlers(s.guard, s.provider, s.log)
	repoHandlers.RegisterRoutes(api)

	// User management is a multi-user surface; in single-user mode the
	// routes are absent and resolve to 404.
	if s.cfg.Auth.Mode == auth.ModeMultiUser && s.users != nil {
		userHandlers := NewUserHandlers(s.users, s.guard, s.audit, s.log)
		userHandlers.RegisterRoutes(api)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
