// Package api implements the HTTP layer for the UniTrade notifications.
// Handlers are methods on *Server. Each notifier is mounted under
// /functions/v1/{name}, the path database webhooks already call.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nyashahama/unitrade-notifications/internal/metrics"
	"github.com/nyashahama/unitrade-notifications/internal/notify"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// AllowedOrigins feeds the CORS handler, e.g. the admin dashboard.
	AllowedOrigins []string

	// JWTSecret verifies the bearer token on trigger calls. Empty disables
	// the check.
	JWTSecret string

	// RequestTimeout bounds one request. A trigger does up to three lookups
	// and one SMTP send, so it must cover those timeouts together.
	// Zero means DefaultRequestTimeout.
	RequestTimeout time.Duration
}

// DefaultRequestTimeout covers three 15s lookups and a 15s SMTP send, with
// room to write the response.
const DefaultRequestTimeout = 75 * time.Second

// Server holds all shared dependencies.
type Server struct {
	// notifiers is keyed by Notifier.Name.
	notifiers map[string]notify.Notifier

	// metrics may be nil, in which case /metrics is not mounted.
	metrics *metrics.Metrics

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(
	notifiers []notify.Notifier,
	m *metrics.Metrics,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		notifiers: make(map[string]notify.Notifier, len(notifiers)),
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
	}
	for _, n := range notifiers {
		s.notifiers[n.Name()] = n
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Client-Info", "apikey", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	r.Use(middleware.Timeout(timeout))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	// ── Trigger functions ─────────────────────────────────────────────────────
	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(s.requireServiceRole)
		r.Post("/{name}", s.handleTrigger)
	})

	return r
}
