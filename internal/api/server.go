package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/prompt-clan/prompt-arena/internal/auth"
	"github.com/prompt-clan/prompt-arena/internal/cache"
	"github.com/prompt-clan/prompt-arena/internal/config"
	"github.com/prompt-clan/prompt-arena/internal/curriculum"
	"github.com/prompt-clan/prompt-arena/internal/game"
	"github.com/prompt-clan/prompt-arena/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config  config.ServerConfig
	router  *chi.Mux
	catalog *curriculum.Catalog
	runner  *game.Runner

	resolver  *config.Resolver
	overrides config.OverrideStore

	repo  storage.Repository
	cache *cache.Cache

	authMiddleware *AuthMiddleware
	oauth          *auth.LinuxDoService
	magic          *auth.MagicLinkService
}

// Deps bundles the services a Server needs
type Deps struct {
	Catalog   *curriculum.Catalog
	Runner    *game.Runner
	Resolver  *config.Resolver
	Overrides config.OverrideStore
	Repo      storage.Repository
	Cache     *cache.Cache
	Tokens    *auth.TokenManager
	OAuth     *auth.LinuxDoService
	Magic     *auth.MagicLinkService
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		config:         cfg,
		catalog:        deps.Catalog,
		runner:         deps.Runner,
		resolver:       deps.Resolver,
		overrides:      deps.Overrides,
		repo:           deps.Repo,
		cache:          deps.Cache,
		authMiddleware: NewAuthMiddleware(deps.Tokens),
		oauth:          deps.OAuth,
		magic:          deps.Magic,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	// Run requests wait on two upstream model calls, so the blanket
	// timeout stays above the per-call LLM timeout
	r.Use(middleware.Timeout(3 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// OAuth endpoints run outside the versioned API: they serve browser
	// redirects, not JSON
	r.Route("/auth", func(r chi.Router) {
		r.Get("/linuxdo/login", s.handleLinuxDoLogin)
		r.Get("/linuxdo/callback", s.handleLinuxDoCallback)
		r.Post("/magiclink", s.handleMagicLinkIssue)
		r.Get("/magiclink/callback", s.handleMagicLinkCallback)
		r.Post("/magiclink/redeem", s.handleMagicLinkRedeem)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads
		r.Get("/chapters", s.handleListChapters)
		r.Get("/levels", s.handleListLevels)
		r.Get("/levels/{id}", s.handleGetLevel)
		r.Get("/leaderboard", s.handleLeaderboard)

		// Player routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware.Authenticate)

			r.Post("/runs", s.handleCreateRun)
			r.Get("/runs/stream", s.handleRunStream)
			r.Get("/history", s.handleHistory)
			r.Get("/me", s.handleMe)
			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
