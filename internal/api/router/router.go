package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/wolfman30/billing-assistant/internal/assistant"
	httpmiddleware "github.com/wolfman30/billing-assistant/internal/http/middleware"
	"github.com/wolfman30/billing-assistant/internal/tenantconfig"
	"github.com/wolfman30/billing-assistant/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	AssistantHandler   *assistant.Handler
	TenantConfig       *tenantconfig.Handler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpmiddleware.TenantHeaderName, httpmiddleware.ActorHeaderName},
			MaxAge:         300,
		}))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(httpmiddleware.TenantHeader)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.AssistantHandler != nil {
		r.Route("/api/assistant", func(api chi.Router) {
			if cfg.RateLimiter != nil {
				api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
			}
			api.Post("/chat", cfg.AssistantHandler.Chat)
			api.Post("/contextual", cfg.AssistantHandler.Contextual)
			api.Post("/expenses", cfg.AssistantHandler.Expenses)
			api.Get("/sessions/{sessionID}/actions", cfg.AssistantHandler.ListSessionActions)
		})
	}

	if cfg.TenantConfig != nil {
		r.Route("/api/tenants/{tenantID}", func(tenant chi.Router) {
			tenant.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			tenant.Get("/assistant-config", cfg.TenantConfig.GetConfig)
			tenant.Put("/assistant-config", cfg.TenantConfig.UpdateConfig)
		})
	}

	return r
}
