// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and
// routes, and decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and calls New, which builds the external
// dependencies (SQLite, the OAuth state store, Google discovery, Gemini):
//
//	New(cfg) → Deps{DB, States, OAuth, Completer} → NewWithDeps(cfg, deps)
//	NewWithDeps: AuthService, chat.Engine, Pages, metrics → handlers → routes
//
// Tests call NewWithDeps directly with an in-memory database and fakes for
// Google and Gemini. Everything below that seam is the production code path.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/promptcraft/internal/assistant"
	"github.com/sakif/promptcraft/internal/auth"
	"github.com/sakif/promptcraft/internal/chat"
	"github.com/sakif/promptcraft/internal/config"
	"github.com/sakif/promptcraft/internal/handler"
	"github.com/sakif/promptcraft/internal/metrics"
	"github.com/sakif/promptcraft/internal/middleware"
	sqliteRepo "github.com/sakif/promptcraft/internal/repository/sqlite"
	"github.com/sakif/promptcraft/internal/service"
)

// Deps are the dependencies that talk to the outside world.
type Deps struct {
	DB        *sqliteRepo.DB
	States    auth.StateStore
	OAuth     service.OAuthProvider
	Completer chat.Completer

	// Registry receives the application metrics. Nil means a fresh registry.
	Registry *prometheus.Registry
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection, the rate limiter's cleanup
// goroutine and (when configured) the Redis client. Close releases them;
// Start calls it during graceful shutdown.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.RateLimiter
	closers []io.Closer
}

// New builds every dependency from cfg and returns a ready Server.
//
// It fails fast: an unreachable Redis or a failed Google discovery stops
// startup instead of surfacing later as broken logins.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	deps := Deps{DB: db}
	var closers []io.Closer

	// === OAUTH STATE STORE ===
	if cfg.RedisAddr != "" {
		store, err := auth.NewRedisStateStore(ctx, auth.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.OAuthStateTTL,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		deps.States = store
		closers = append(closers, store)
		logger.Info("oauth state store: redis", slog.String("addr", cfg.RedisAddr))
	} else {
		deps.States = auth.NewMemoryStateStore(cfg.OAuthStateTTL)
		logger.Info("oauth state store: memory")
	}

	// === GOOGLE OPENID CONNECT ===
	discoveryCtx, cancel := context.WithTimeout(ctx, cfg.OAuthTimeout)
	defer cancel()
	google, err := auth.NewGoogleProvider(discoveryCtx, auth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		IssuerURL:    cfg.GoogleIssuerURL,
	})
	if err != nil {
		closeAll(logger, closers)
		db.Close()
		return nil, err
	}
	deps.OAuth = google

	// === GEMINI ===
	// Each call is also bounded by the engine's AI_TIMEOUT context.
	deps.Completer = assistant.NewGemini(&http.Client{Timeout: 2 * cfg.AITimeout}, assistant.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	}, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Registry = registry

	s, err := NewWithDeps(cfg, deps, logger)
	if err != nil {
		closeAll(logger, closers)
		db.Close()
		return nil, err
	}
	s.closers = append(s.closers, closers...)
	return s, nil
}

// NewWithDeps wires the application on top of already built dependencies.
// The returned Server owns deps.DB.
func NewWithDeps(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	// Expired sessions from earlier runs are purged at startup.
	purged, err := deps.DB.Sessions().DeleteExpired(context.Background(), time.Now())
	if err != nil {
		return nil, fmt.Errorf("purging expired sessions: %w", err)
	}
	if purged > 0 {
		logger.Info("purged expired sessions", slog.Int64("count", purged))
	}

	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	collector := metrics.NewCollector(deps.Registry)

	pages, err := handler.NewPages(logger)
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     deps.DB,
		limiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			PerMinute: cfg.ChatRatePerMinute,
			Burst:     cfg.ChatRateBurst,
			Reject:    pages.TooManyRequests,
		}, logger),
	}

	authService := service.NewAuthService(service.AuthDeps{
		Users:        deps.DB.Users(),
		Sessions:     deps.DB.Sessions(),
		Passwords:    auth.NewPasswordService(),
		Tokens:       tokens,
		OAuth:        deps.OAuth,
		States:       deps.States,
		Logger:       logger,
		SessionTTL:   cfg.SessionTTL,
		OAuthTimeout: cfg.OAuthTimeout,
	})

	engine := chat.NewEngine(chat.Config{
		Store:     deps.DB.Transcripts(),
		Completer: deps.Completer,
		Recorder:  collector,
		Logger:    logger,
		AITimeout: cfg.AITimeout,
	})

	authHandler := handler.NewAuthHandler(authService, pages, handler.CookieConfig{
		Secure:     cfg.CookieSecure,
		SessionTTL: cfg.SessionTTL,
		StateTTL:   cfg.OAuthStateTTL,
	}, collector, logger)
	chatHandler := handler.NewChatHandler(engine, pages, logger)

	s.setupRoutes(authService, authHandler, chatHandler, pages, collector, deps.Registry)
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /healthz                     → liveness + database ping
// GET  /metrics                     → Prometheus exposition
// GET  /signup, POST /signup        → password signup
// GET  /login,  POST /login         → password login
// GET  /logout                      → revoke session
// GET  /login/google                → start Google login
// GET  /auth/callback               → finish Google login
// GET  /                            → transcript page        (session)
// POST /                            → submit a message       (session, rate limited)
// POST /reset                       → clear the transcript   (session)
// GET  /download/{index}/{format}   → export one turn        (session)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: extracts the real client IP from proxy headers
// 3. Logger: logs each request and counts its status code
// 4. Recoverer: turns a panic into a 500 that Logger still sees
// 5. SecurityHeaders, CSRF: apply to every page
func (s *Server) setupRoutes(
	resolver auth.SessionResolver,
	authHandler *handler.AuthHandler,
	chatHandler *handler.ChatHandler,
	pages *handler.Pages,
	collector *metrics.Collector,
	registry *prometheus.Registry,
) {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, collector))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecurityHeaders)

	// === Operational Routes ===
	// Registered outside the CSRF group: they never set cookies.
	s.router.Get("/healthz", handler.Health(s.db, s.logger))
	s.router.Handle("/metrics", metrics.Handler(registry))

	s.router.NotFound(pages.NotFound)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.CSRF(middleware.CSRFConfig{CookieSecure: s.config.CookieSecure}, s.logger))

		// === Public Routes ===
		r.Get("/signup", authHandler.ShowSignup)
		r.Post("/signup", authHandler.Signup)
		r.Get("/login", authHandler.ShowLogin)
		r.Post("/login", authHandler.Login)
		r.Get("/logout", authHandler.Logout)
		r.Get("/login/google", authHandler.GoogleLogin)
		r.Get("/auth/callback", authHandler.GoogleCallback)

		// === Protected Routes ===
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(resolver, pages.Error))

			r.Get("/", chatHandler.Index)
			r.With(s.limiter.Middleware).Post("/", chatHandler.Submit)
			r.Post("/reset", chatHandler.Reset)
			r.Get("/download/{index}/{format}", chatHandler.Download)
		})
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases everything the server owns. Safe to call once.
func (s *Server) Close() error {
	s.limiter.Stop()
	closeAll(s.logger, s.closers)
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the rate limiter, Redis and the database
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing resources", slog.String("error", err.Error()))
		}
	}()

	// WriteTimeout must exceed AI_TIMEOUT or a slow completion would be
	// cut off mid-response.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func closeAll(logger *slog.Logger, closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}
