package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bandsync/backend/internal/config"
	"github.com/bandsync/backend/internal/db"
	"github.com/bandsync/backend/internal/handlers"
	"github.com/bandsync/backend/internal/middleware"
	"github.com/bandsync/backend/internal/realtime"
	"github.com/bandsync/backend/internal/services"
	"github.com/bandsync/backend/internal/songs"
)

// New wires services, handlers, and middleware into the HTTP surface.
func New(cfg *config.Config, queries *db.Queries, catalog *songs.Store, hub *realtime.Hub) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewRealIPMiddleware(cfg.TrustedProxies).Handler)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	// Services
	authService := services.NewAuthService(cfg.JWTSecret, cfg.TokenDuration)
	inviteService := services.NewInviteService(queries)
	rehearsalService := services.NewRehearsalService(queries, hub, inviteService)

	// Handlers
	authHandler := handlers.NewAuthHandler(queries, authService)
	rehearsalHandler := handlers.NewRehearsalHandler(rehearsalService)
	songHandler := handlers.NewSongHandler(catalog)
	wsHandler := handlers.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	// Rate limiter for credential endpoints
	authRateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth (no token required, rate limited)
	r.Route("/auth", func(r chi.Router) {
		r.Use(authRateLimiter.Middleware)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// Everything below requires a valid token
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(authService))
		r.Use(middleware.UpdateRequestContextMiddleware)

		// Realtime channel (token accepted via query parameter)
		r.Get("/ws", wsHandler.Serve)

		r.Route("/rehearsals", func(r chi.Router) {
			// Creating a session requires the admin role; per-session
			// admin-of-session checks live in the service.
			r.With(middleware.AdminOnlyMiddleware).Post("/", rehearsalHandler.Create)

			r.Get("/active", rehearsalHandler.GetActive)
			r.Post("/join-by-code", rehearsalHandler.JoinByCode)
			r.Post("/{id}/join", rehearsalHandler.Join)
			r.Get("/{id}", rehearsalHandler.Get)
			r.Patch("/{id}/song", rehearsalHandler.ChangeSong)
			r.Post("/quit/{id}", rehearsalHandler.Quit)
		})

		r.Route("/songs", func(r chi.Router) {
			r.Get("/", songHandler.List)
			r.Get("/search", songHandler.Search)
			r.Get("/{id}", songHandler.Get)
		})
	})

	return r
}
