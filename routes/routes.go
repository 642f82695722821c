package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/handlers"
	"github.com/upb/llm-router/middleware"
	"github.com/upb/llm-router/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Dispatch-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var db handlers.HealthChecker
	if deps.DB != nil {
		db = deps.DB
	}
	auth := deps.AuthMiddleware
	if auth == nil {
		auth = middleware.NewAuthMiddleware(nil, deps.Logger)
	}

	healthHandler := handlers.NewHealthHandler(db, deps.Logger)
	chatHandler := handlers.NewChatHandler(deps.Router, deps.Logger)
	modelsHandler := handlers.NewModelsHandler(deps.Router, deps.Config)
	statusHandler := handlers.NewStatusHandler(app.Version, deps.Config.Environment, deps.Router,
		deps.Audit.Enabled(), auth.Enabled())
	dispatchHandler := handlers.NewDispatchHandler(deps.Audit, deps.Router, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// OpenAI-compatible endpoints
	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.With(chimw.Timeout(chatTimeout(deps))).
			Post("/chat/completions", chatHandler.HandleChatCompletion)
		r.Get("/models", modelsHandler.HandleListModels)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", statusHandler.HandleStatus)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Get("/stats", dispatchHandler.HandleStats)
			r.Get("/dispatches", dispatchHandler.HandleListRecent)
			r.Get("/dispatches/{id}", dispatchHandler.HandleGetDispatch)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}

// defaultChatTimeout bounds a dispatch when the server has no write timeout
const defaultChatTimeout = 180 * time.Second

func chatTimeout(deps *app.Dependencies) time.Duration {
	if deps.Config.Server.WriteTimeout > 0 {
		return deps.Config.Server.WriteTimeout
	}
	return defaultChatTimeout
}
