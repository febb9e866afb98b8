// Package web provides the HTTP server, JSON API and pages of the
// partnership dashboard.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/streakflow/internal/auth"
	"github.com/JonMunkholm/streakflow/internal/config"
	"github.com/JonMunkholm/streakflow/internal/core"
	mw "github.com/JonMunkholm/streakflow/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options wires the server to its collaborators.
type Options struct {
	Service  *core.Service
	Sessions *auth.Sessions

	// OIDC runs the login flow. Nil disables /api/login and /api/callback.
	OIDC *auth.OIDC

	Config *config.Config
}

// Server is the HTTP server of the dashboard.
type Server struct {
	service  *core.Service
	sessions *auth.Sessions
	oidc     *auth.OIDC
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	limiters []*rateLimiter
}

// NewServer creates a new Server instance.
func NewServer(opts Options) *Server {
	s := &Server{
		service:  opts.Service,
		sessions: opts.Sessions,
		oidc:     opts.OIDC,
		cfg:      opts.Config,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(mw.ParseTrustedProxies(s.cfg.Security.TrustedProxies)))
	s.router.Use(mw.Session(s.sessions))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware(s.respondError))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// Pages
	s.router.Get("/login", s.handleLoginPage)
	s.router.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth(s.service, s.respondError))
		r.Get("/", s.handleDashboard)
		r.Get("/pipelines/{key}", s.handlePipelinePage)
	})

	s.router.Route("/api", func(r chi.Router) {
		// Login flow
		r.Get("/login", s.handleLogin)
		r.Get("/callback", s.handleCallback)
		r.Get("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAuth(s.service, s.respondError))

			r.Get("/auth/user", s.handleAuthUser)

			r.Get("/pipelines", s.handleListPipelines)
			r.Get("/pipelines/{key}", s.handleGetPipeline)
			r.Get("/pipelines/{key}/boxes", s.handleListBoxes)
			r.Get("/pipelines/{key}/groups", s.handleGroupedBoxes)

			r.Get("/boxes/{key}", s.handleGetBox)

			update := r.With()
			if s.cfg.Rate.Enabled {
				update = r.With(s.newRateLimiter(s.cfg.Rate.UpdateLimit, time.Minute).middleware(s.respondError))
			}
			update.Post("/boxes/{key}/fields/{fieldKey}", s.handleUpdateBoxField)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Close stops the rate limiter cleanup goroutines. It is safe to call more
// than once.
func (s *Server) Close() {
	for _, rl := range s.limiters {
		rl.stop()
	}
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := newRateLimiter(rate, window)
	s.limiters = append(s.limiters, rl)
	return rl
}

const contentSecurityPolicy = "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; font-src 'self'; frame-ancestors 'none'"

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				// Profile pictures come from the identity provider, hence https: for images.
				w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}
