package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"bireader-backend/internal/handlers"
	"bireader-backend/internal/middleware"
	"bireader-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	articleHandler *handlers.ArticleHandler,
	readingHandler *handlers.ReadingSessionHandler,
	jobHandler *handlers.JobHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	// Reading writes: one per card plus settings changes (120 req/min per user)
	readingLimiter := middleware.NewUserRateLimiter(120, time.Minute)
	// Article submission and preview run the aligner (20 req/min per user)
	alignLimiter := middleware.NewUserRateLimiter(20, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── User & Settings Routes ────
		r.Route("/user", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/me", userHandler.GetMe)
			r.Get("/settings", userHandler.GetSettings)
			r.Put("/settings", userHandler.UpdateSettings)
		})

		// ──── Article Routes ────
		r.Route("/articles", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", articleHandler.List)
			r.Get("/{id}", articleHandler.Get)
			r.Get("/{id}/cards", articleHandler.Cards)
			r.Delete("/{id}", articleHandler.Delete)

			r.Group(func(r chi.Router) {
				r.Use(alignLimiter.Middleware)
				r.Post("/", articleHandler.Create)
				r.Post("/preview", articleHandler.Preview)
			})
		})

		// ──── Reading Session Routes ────
		r.Route("/reading-sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", readingHandler.List)
			r.Get("/stats", readingHandler.Stats)
			r.Get("/{id}", readingHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(readingLimiter.Middleware)
				r.Post("/", readingHandler.Create)
				r.Patch("/{id}", readingHandler.Patch)
				r.Post("/{id}/cards/{index}/complete", readingHandler.CompleteCard)
			})
		})

		// ──── Job Routes ────
		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", jobHandler.GetJob)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
