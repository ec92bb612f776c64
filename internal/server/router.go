package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/fdcollector/fdc/internal/cache"
	"github.com/fdcollector/fdc/internal/handler"
	"github.com/fdcollector/fdc/internal/metrics"
	"github.com/fdcollector/fdc/internal/middleware"
	"github.com/fdcollector/fdc/internal/service"
)

// Services groups the application services the router exposes.
type Services struct {
	Resolver *service.Resolver
	Accounts *service.AccountService
	Clients  *service.ClientService
	APIKeys  *service.APIKeyService
	Forms    *service.FormService
	Sync     *service.SyncService
	Stats    *service.StatsService
}

// RouterConfig holds everything NewRouter wires together.
type RouterConfig struct {
	Logger   *slog.Logger
	Services Services

	// Cache backs rate limiting.
	Cache *cache.Cache
	// Metrics is rendered on /metrics and counts login throttling.
	Metrics *metrics.InMemoryRecorder

	// Readiness dependencies; nil reports "not configured".
	DB    handler.HealthChecker
	Redis handler.HealthChecker

	IsDevelopment      bool
	CORSAllowedOrigins []string

	// TrustProxyHeaders takes the client address from forwarding headers.
	// Otherwise the socket peer is used, including by the login limiter.
	TrustProxyHeaders bool

	MaxRequestBodySize int64

	RateLimit middleware.RateLimitConfig
}

// Not-found messages for malformed path ids.
var (
	clientIDs     = map[string]string{"clientId": "Client not found"}
	clientPathIDs = map[string]string{"id": "Client not found"}
	formIDs       = map[string]string{"formId": "Form not found"}
	submissionIDs = map[string]string{"id": "Submission not found"}
	keyIDs        = map[string]string{"id": "API key not found"}
)

// NewRouter builds the HTTP handler of the collector API.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	svc := cfg.Services
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewInMemory()
	}

	healthHandler := handler.NewHealthHandler(cfg.DB, cfg.Redis, logger)
	metricsHandler := handler.NewMetricsHandler(cfg.Metrics)
	accountHandler := handler.NewAccountHandler(svc.Accounts, logger)
	clientHandler := handler.NewClientHandler(svc.Clients, logger)
	apiKeyHandler := handler.NewAPIKeyHandler(svc.APIKeys, logger)
	formHandler := handler.NewFormHandler(svc.Forms, logger)
	syncHandler := handler.NewSyncHandler(svc.Sync, logger)
	statsHandler := handler.NewStatsHandler(svc.Stats, logger)

	rateLimitCfg := cfg.RateLimit
	rateLimitCfg.Logger = logger
	rateLimitCfg.Cache = cfg.Cache
	if rateLimitCfg.Metrics == nil {
		rateLimitCfg.Metrics = cfg.Metrics
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	r := chi.NewRouter()

	// Global middleware
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))

	// Probes and metrics (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(corsCfg))
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

		// Account entry points
		r.Post("/auth/signup", accountHandler.Signup)
		r.With(middleware.RateLimitLogin(rateLimitCfg)).Post("/auth/login", accountHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(middleware.AuthConfig{Logger: logger, Resolver: svc.Resolver}))
			r.Use(middleware.RateLimitAPI(rateLimitCfg))

			// Connector plugin (client-scoped API key)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireClient())
				r.Post("/forms/sync", formHandler.Sync)
				r.Post("/forms/submissions", formHandler.Ingest)
			})

			// Dashboard (user session)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession())

				r.Get("/auth/me", accountHandler.Me)
				r.Patch("/auth/me", accountHandler.UpdateMe)

				r.Route("/clients", func(r chi.Router) {
					r.Post("/", clientHandler.Create)
					r.Get("/", clientHandler.List)
					r.With(middleware.ValidateIDs(clientPathIDs)).Get("/{id}", clientHandler.Get)
					r.With(middleware.ValidateIDs(clientPathIDs)).Delete("/{id}", clientHandler.Delete)
				})

				r.With(middleware.ValidateIDs(clientIDs)).Post("/forms/discover/{clientId}", syncHandler.Discover)
				r.With(middleware.ValidateIDs(clientIDs)).Get("/forms/client/{clientId}", formHandler.ListByClient)
				r.With(middleware.ValidateIDs(formIDs)).Get("/forms/{formId}/submissions", formHandler.ListSubmissions)
				r.With(middleware.ValidateIDs(formIDs)).Delete("/forms/{formId}", formHandler.DeleteForm)
				r.With(middleware.ValidateIDs(submissionIDs)).Delete("/forms/submissions/{id}", formHandler.DeleteSubmission)

				r.Get("/submissions/recent", formHandler.Recent)

				r.With(middleware.ValidateIDs(clientIDs)).Post("/sync/client/{clientId}", syncHandler.SyncClient)

				r.Get("/stats", statsHandler.Global)
				r.With(middleware.ValidateIDs(clientIDs)).Get("/stats/client/{clientId}", statsHandler.Client)

				r.Route("/api-keys", func(r chi.Router) {
					r.Post("/generate", apiKeyHandler.Generate)
					r.Get("/", apiKeyHandler.List)
					r.With(middleware.ValidateIDs(keyIDs)).Delete("/{id}", apiKeyHandler.Deactivate)
				})
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}
