package routes

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/ai-orchestrator/app"
	"github.com/upb/ai-orchestrator/handlers"
	appmw "github.com/upb/ai-orchestrator/middleware"
	"github.com/upb/ai-orchestrator/services/content"
	"github.com/upb/ai-orchestrator/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmw.NewRequestLogger(deps.Logger, "/healthz", "/readyz", "/metrics").Handler)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout(cfg.Server.WriteTimeout)))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(sqlDB(deps), deps.Store, deps.Orchestrator, deps.Logger)
	ai := handlers.NewAIHandler(deps.Orchestrator, deps.Logger)
	contentHandler := handlers.NewContentHandler(deps.Content, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		status := handlers.StatusInfo{
			Environment: cfg.Environment,
			Providers:   cfg.Providers.Configured(),
			Store:       cfg.Store.Backend,
			Ledger:      cfg.Store.LedgerBackend,
			Cache:       cfg.Content.CacheBackend,
		}
		if stats, ok := deps.ContentCache.(content.StatsReporter); ok {
			status.CacheStats = stats
		}
		r.Get("/status", handlers.StatusHandler(status))

		r.Route("/ai", func(r chi.Router) {
			r.Post("/completions", ai.HandleCompletion)
			r.Get("/summary", ai.HandleSummary)
			r.Get("/usage", ai.HandleUsage)
			r.Get("/providers", ai.HandleListProviders)
			r.Post("/providers/test", ai.HandleTestProviders)
			r.Delete("/health", ai.HandleClearHealth)
		})

		r.Route("/content", func(r chi.Router) {
			r.Get("/types", contentHandler.HandleTypes)
			r.Delete("/cache", contentHandler.HandleClearCache)
			r.Post("/{type}", contentHandler.HandleGenerate)
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

// requestTimeout keeps a failover chain inside the server's write deadline
func requestTimeout(writeTimeout time.Duration) time.Duration {
	if writeTimeout <= 0 {
		return 60 * time.Second
	}
	return writeTimeout
}

func sqlDB(deps *app.Dependencies) *sql.DB {
	if deps.DB == nil {
		return nil
	}
	return deps.DB.DB
}
