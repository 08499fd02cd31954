// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer. It decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → sqldb.DB → repositories
//	repositories + revalidate.Notifier → services
//	services → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/routes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/blog-platform/internal/auth"
	"github.com/sakif/blog-platform/internal/config"
	"github.com/sakif/blog-platform/internal/handler"
	"github.com/sakif/blog-platform/internal/loader"
	"github.com/sakif/blog-platform/internal/media"
	"github.com/sakif/blog-platform/internal/middleware"
	"github.com/sakif/blog-platform/internal/repository/sqldb"
	"github.com/sakif/blog-platform/internal/revalidate"
	"github.com/sakif/blog-platform/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database pool and the revalidation webhook's
// background sends. Close waits for the sends and then closes the pool.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqldb.DB
	webhook *revalidate.WebhookNotifier // nil when REVALIDATE_URL is unset
}

// New opens the database, builds every service and handler, and mounts the
// routes. Optional integrations (GitHub login, S3 uploads, the revalidation
// webhook) are only wired when configured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	dialect, err := sqldb.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	db, err := sqldb.Open(ctx, dialect, cfg.DSN(), logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.routes(ctx); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// routes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz
//	GET    /auth/github/login | /auth/github/callback   (GitHub configured)
//	POST   /auth/register | /auth/login | /auth/logout
//
//	Public (token optional):
//	GET    /api/posts                      ?limit&cursor&categoryId
//	GET    /api/posts/slug/{slug}
//	GET    /api/categories | /api/categories/{id} | /api/categories/slug/{slug}
//	GET    /api/users/{id} | /api/users/{id}/posts | /api/users/{id}/stats
//
//	Signed in:
//	GET    /api/me | /api/me/likes | /api/me/bookmarks
//	GET    /api/profile              PUT /api/profile
//	POST   /api/posts                PATCH|DELETE /api/posts/{id}
//	GET    /api/admin/posts | /api/admin/posts/{id} | /api/admin/categories
//	POST   /api/categories           PATCH|DELETE /api/categories/{id}
//	POST|GET /api/posts/{id}/like    GET /api/posts/{id}/likes/count
//	POST|GET /api/posts/{id}/bookmark GET /api/posts/{id}/bookmarks/count
//	POST   /api/media/presign        (S3 configured)
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns unique ID to each request (for tracing)
//  2. RealIP: extracts real client IP from proxy headers
//  3. Logger: logs each request with timing info and the request ID
//  4. Recoverer: catches panics and returns 500 instead of crashing
//  5. loader.Middleware: fresh per-request batch loaders
func (s *Server) routes(ctx context.Context) error {
	cfg := s.config

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(loader.Middleware(s.db.Posts()))

	// === Auth primitives ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	var notifier revalidate.Notifier = revalidate.NewLogNotifier(s.logger)
	if cfg.RevalidateURL != "" {
		s.webhook = revalidate.NewWebhookNotifier(cfg.RevalidateURL, cfg.RevalidateSecret, s.logger)
		notifier = s.webhook
	}

	// === Services ===
	// Each service gets the repository interfaces it needs, never the DB.
	postSvc := service.NewPostService(s.db.Posts(), s.db.Likes(), s.db.Bookmarks(), notifier, s.logger)
	categorySvc := service.NewCategoryService(s.db.Categories(), s.logger)
	likeSvc := service.NewRelationService("like", s.db.Likes(), s.db.Posts(), s.logger)
	bookmarkSvc := service.NewRelationService("bookmark", s.db.Bookmarks(), s.db.Posts(), s.logger)
	profileSvc := service.NewProfileService(s.db.Users(), s.logger)
	userSvc := service.NewUserService(s.db.Users(), s.db.Posts(), s.logger)
	authSvc := service.NewAuthService(s.db.Users(), tokens, auth.NewPasswordService(), s.logger)

	// === Handlers ===
	var github auth.OAuthProvider
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
	}
	authH := handler.NewAuthHandler(authSvc, github, handler.SessionConfig{
		TTL:      tokens.TTL(),
		Secure:   cfg.CookieSecure,
		Redirect: cfg.LoginRedirectURL,
	}, s.logger)
	postH := handler.NewPostHandler(postSvc, s.logger)
	categoryH := handler.NewCategoryHandler(categorySvc, s.logger)
	likeH := handler.NewLikeHandler(likeSvc, s.logger)
	bookmarkH := handler.NewBookmarkHandler(bookmarkSvc, s.logger)
	userH := handler.NewUserHandler(profileSvc, userSvc, s.logger)

	var mediaH *handler.MediaHandler
	if cfg.MediaEnabled() {
		uploads, err := media.New(ctx, cfg.S3, s.logger)
		if err != nil {
			return fmt.Errorf("creating media service: %w", err)
		}
		mediaH = handler.NewMediaHandler(uploads, s.logger)
	}

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// === Auth Routes ===
	s.router.Route("/auth", func(r chi.Router) {
		if github != nil {
			r.Get("/github/login", authH.HandleGitHubLogin)
			r.Get("/github/callback", authH.HandleGitHubCallback)
		}
		r.Post("/register", authH.HandleRegister)
		r.Post("/login", authH.HandleLogin)
		r.Post("/logout", authH.HandleLogout)
	})

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))

			r.Get("/posts", postH.HandleList)
			r.Get("/posts/slug/{slug}", postH.HandleGetBySlug)

			r.Get("/categories", categoryH.HandleList)
			r.Get("/categories/{id}", categoryH.HandleGetByID)
			r.Get("/categories/slug/{slug}", categoryH.HandleGetBySlug)

			r.Get("/users/{id}", userH.HandleGetUser)
			r.Get("/users/{id}/posts", userH.HandleGetUserPosts)
			r.Get("/users/{id}/stats", userH.HandleGetUserStats)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authH.HandleMe)
			r.Get("/me/likes", likeH.HandleList)
			r.Get("/me/bookmarks", bookmarkH.HandleList)
			r.Get("/profile", userH.HandleGetProfile)
			r.Put("/profile", userH.HandleUpdateProfile)

			r.Post("/posts", postH.HandleCreate)
			r.Patch("/posts/{id}", postH.HandleUpdate)
			r.Delete("/posts/{id}", postH.HandleDelete)
			r.Get("/admin/posts", postH.HandleListAll)
			r.Get("/admin/posts/{id}", postH.HandleGetByID)

			r.Get("/admin/categories", categoryH.HandleListAdmin)
			r.Post("/categories", categoryH.HandleCreate)
			r.Patch("/categories/{id}", categoryH.HandleUpdate)
			r.Delete("/categories/{id}", categoryH.HandleDelete)

			r.Post("/posts/{id}/like", likeH.HandleToggle)
			r.Get("/posts/{id}/like", likeH.HandleStatus)
			r.Get("/posts/{id}/likes/count", likeH.HandleCount)
			r.Post("/posts/{id}/bookmark", bookmarkH.HandleToggle)
			r.Get("/posts/{id}/bookmark", bookmarkH.HandleStatus)
			r.Get("/posts/{id}/bookmarks/count", bookmarkH.HandleCount)

			if mediaH != nil {
				r.Post("/media/presign", mediaH.HandlePresign)
			}
		})
	})

	s.logger.Info("routes configured",
		slog.Bool("github", github != nil),
		slog.Bool("media", mediaH != nil),
		slog.Bool("webhook", s.webhook != nil),
	)
	return nil
}

// Close waits for pending revalidation sends and closes the database.
func (s *Server) Close() error {
	if s.webhook != nil {
		s.webhook.Wait()
	}
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Let queued revalidation webhooks finish
//  4. Close the database connection
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("driver", s.config.DBDriver),
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
