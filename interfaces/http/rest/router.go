package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/application/ports"
	"github.com/mrsidrdx/context-graph-ai/interfaces/http/rest/handlers"
	"github.com/mrsidrdx/context-graph-ai/interfaces/http/rest/middleware"
	"github.com/mrsidrdx/context-graph-ai/pkg/auth"
	"github.com/mrsidrdx/context-graph-ai/pkg/observability"
)

// RouterConfig holds the transport settings of the router.
type RouterConfig struct {
	AllowedOrigins   []string
	SessionCookie    string
	RateLimitEnabled bool
	RateLimitWindow  time.Duration
	MetricsEnabled   bool
}

// Router creates and configures the HTTP router
type Router struct {
	config        RouterConfig
	chat          *handlers.ChatHandler
	conversations *handlers.ConversationHandler
	contexts      *handlers.ContextHandler
	health        *handlers.HealthHandler
	validator     *auth.JWTValidator
	limiter       ports.RateLimiter
	metrics       *observability.Collector
	logger        *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	config RouterConfig,
	chat *handlers.ChatHandler,
	conversations *handlers.ConversationHandler,
	contexts *handlers.ContextHandler,
	health *handlers.HealthHandler,
	validator *auth.JWTValidator,
	limiter ports.RateLimiter,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Router {
	return &Router{
		config:        config,
		chat:          chat,
		conversations: conversations,
		contexts:      contexts,
		health:        health,
		validator:     validator,
		limiter:       limiter,
		metrics:       metrics,
		logger:        logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware. No request timeout: chat responses are long-lived streams.
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.config.MetricsEnabled {
		router.Use(middleware.Metrics(rt.metrics))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.health.Health)
	router.Get("/ready", rt.health.Ready)
	if rt.config.MetricsEnabled {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.config.SessionCookie, rt.logger))

		r.Route("/chat", func(r chi.Router) {
			if rt.config.RateLimitEnabled {
				r.Use(middleware.RateLimit(rt.limiter, rt.config.RateLimitWindow, rt.metrics, rt.logger))
			}
			r.Post("/", rt.chat.Chat)
			r.Post("/quick", rt.chat.Quick)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", rt.conversations.ListConversations)
			r.Post("/", rt.conversations.CreateConversation)
			r.Get("/{id}", rt.conversations.GetConversation)
			r.Patch("/{id}", rt.conversations.UpdateConversation)
			r.Delete("/{id}", rt.conversations.DeleteConversation)
			r.Post("/{id}/messages", rt.conversations.AddMessage)
		})

		r.Route("/context/{userId}", func(r chi.Router) {
			r.Get("/", rt.contexts.GetContext)
			r.Delete("/cache", rt.contexts.InvalidateContext)
		})
	})

	return router
}
