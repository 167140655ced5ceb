package di

import (
	"context"
	"os"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mrsidrdx/context-graph-ai/application/ports"
	"github.com/mrsidrdx/context-graph-ai/application/services"
	"github.com/mrsidrdx/context-graph-ai/domain/graph"
	"github.com/mrsidrdx/context-graph-ai/infrastructure/cache"
	"github.com/mrsidrdx/context-graph-ai/infrastructure/config"
	"github.com/mrsidrdx/context-graph-ai/infrastructure/llm"
	"github.com/mrsidrdx/context-graph-ai/infrastructure/llm/anthropic"
	"github.com/mrsidrdx/context-graph-ai/infrastructure/persistence/graphdb"
	"github.com/mrsidrdx/context-graph-ai/infrastructure/persistence/mongodb"
	"github.com/mrsidrdx/context-graph-ai/interfaces/http/rest"
	"github.com/mrsidrdx/context-graph-ai/interfaces/http/rest/handlers"
	"github.com/mrsidrdx/context-graph-ai/pkg/auth"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
	"github.com/mrsidrdx/context-graph-ai/pkg/observability"
)

const (
	metricsNamespace = "context_graph"
	indexTimeout     = 10 * time.Second
	closeTimeout     = 5 * time.Second
)

// ProvideLogLevel parses the configured level. The returned level is shared
// with the logger so a config reload can change it in place.
func ProvideLogLevel(cfg *config.Config) zap.AtomicLevel {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Logging.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
			level.SetLevel(zapcore.InfoLevel)
		}
	}
	return level
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideConfigWatcher watches CONFIG_FILE and applies log level changes.
func ProvideConfigWatcher(cfg *config.Config, level zap.AtomicLevel, logger *zap.Logger) (*config.Watcher, func(), error) {
	watcher, err := config.NewWatcher(os.Getenv("CONFIG_FILE"), cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	watcher.OnChange(func(next *config.Config) {
		if err := level.UnmarshalText([]byte(next.Logging.Level)); err != nil {
			logger.Warn("Ignoring invalid log level", zap.String("level", next.Logging.Level))
			return
		}
		logger.Info("Log level changed", zap.String("level", level.String()))
	})
	return watcher, watcher.Stop, nil
}

// ProvideMetrics creates the Prometheus collector.
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector(metricsNamespace)
}

// ProvideTracer installs the OpenTelemetry provider when tracing is enabled.
func ProvideTracer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideNeo4jDriver creates the graph database driver.
func ProvideNeo4jDriver(cfg *config.Config, logger *zap.Logger) (neo4j.DriverWithContext, func(), error) {
	driver, err := graphdb.NewDriver(graphdb.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := driver.Close(closeCtx); err != nil {
			logger.Warn("Neo4j driver close failed", zap.Error(err))
		}
	}
	return driver, cleanup, nil
}

// ProvideGraphStore creates the graph store.
func ProvideGraphStore(driver neo4j.DriverWithContext, cfg *config.Config, logger *zap.Logger) *graphdb.GraphStore {
	return graphdb.NewGraphStore(driver, cfg.Neo4j.Database, logger)
}

// ProvideMongoClient creates the MongoDB client.
func ProvideMongoClient(cfg *config.Config, logger *zap.Logger) (*mongo.Client, func(), error) {
	client, err := mongodb.Connect(cfg.Mongo.URI)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := client.Disconnect(closeCtx); err != nil {
			logger.Warn("MongoDB disconnect failed", zap.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideConversationRepository creates the repository and its indexes. An
// unreachable database is logged, not fatal; the indexes are created again on
// the next start.
func ProvideConversationRepository(ctx context.Context, client *mongo.Client, cfg *config.Config, logger *zap.Logger) *mongodb.ConversationRepository {
	repo := mongodb.NewConversationRepository(client, cfg.Mongo.Database, cfg.Mongo.Collection, logger)

	indexCtx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()
	if err := repo.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("Failed to ensure conversation indexes", zap.Error(err))
	}
	return repo
}

// ProvideRedisClient creates the Redis client. It is nil with the memory
// cache provider.
func ProvideRedisClient(cfg *config.Config, logger *zap.Logger) (*redis.Client, func(), error) {
	if cfg.Cache.Provider != "redis" {
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(cfg.Cache.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Redis close failed", zap.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideCache selects the context cache backend.
func ProvideCache(cfg *config.Config, client *redis.Client) (ports.Cache, func()) {
	if client != nil {
		return cache.NewRedisCache(client, ""), func() {}
	}
	mem := cache.NewMemoryCache(cfg.Cache.MaxItems)
	return mem, mem.Close
}

// ProvideRateLimiter shares limits across instances through Redis when it is
// configured and falls back to a per-process window otherwise.
func ProvideRateLimiter(cfg *config.Config, client *redis.Client) ports.RateLimiter {
	if client != nil {
		return cache.NewRedisRateLimiter(client, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}
	return auth.NewSlidingWindowLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
}

// ProvideTextGenerator creates the Anthropic client, behind a circuit breaker
// when enabled.
func ProvideTextGenerator(cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) ports.TextGenerator {
	client := anthropic.NewClient(anthropic.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		MaxTokens:      cfg.LLM.MaxTokens,
		RequestTimeout: cfg.LLM.RequestTimeout,
	}, logger)
	if !client.IsConfigured() {
		logger.Warn("ANTHROPIC_API_KEY is not set; chat requests will fail until it is")
	}

	if !cfg.LLM.Breaker.Enabled {
		return client
	}
	return llm.NewBreakerGenerator(client, llm.BreakerConfig{
		Name:         "anthropic",
		MaxRequests:  cfg.LLM.Breaker.MaxRequests,
		Interval:     cfg.LLM.Breaker.Interval,
		Timeout:      cfg.LLM.Breaker.Timeout,
		FailureRatio: cfg.LLM.Breaker.FailureRatio,
		MinRequests:  cfg.LLM.Breaker.MinRequests,
	}, metrics, logger)
}

// ProvideContextService creates the graph context builder.
func ProvideContextService(store ports.GraphStore, c ports.Cache, cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) *services.ContextService {
	return services.NewContextService(store, c, services.ContextServiceConfig{
		CacheTTL: cfg.Cache.ContextTTL,
		Timeout:  cfg.Pipeline.ContextTimeout,
	}, metrics, logger)
}

// ProvideEnricher creates the context enricher.
func ProvideEnricher(gen ports.TextGenerator, cfg *config.Config, logger *zap.Logger) *services.Enricher {
	return services.NewEnricher(gen, services.EnricherConfig{
		MaxTokens: cfg.LLM.EnrichmentMaxTokens,
		Timeout:   cfg.Pipeline.EnrichmentTimeout,
	}, logger)
}

// ProvideAgentService creates the streaming engine.
func ProvideAgentService(
	contexts *services.ContextService,
	enricher *services.Enricher,
	gen ports.TextGenerator,
	cfg *config.Config,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.AgentService {
	return services.NewAgentService(contexts, enricher, gen, services.AgentConfig{
		DefaultDepth:  graph.Depth(cfg.Pipeline.DefaultDepth),
		MaxTokens:     cfg.LLM.MaxTokens,
		HistoryTurns:  cfg.Pipeline.HistoryTurns,
		StreamTimeout: cfg.Pipeline.StreamTimeout,
		EventBuffer:   cfg.Pipeline.EventBuffer,
	}, metrics, logger)
}

// ProvideErrorHandler exposes stack traces outside production only.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *errors.ErrorHandler {
	return errors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideJWTValidator creates the session token validator.
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey:  cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.JWTIssuer,
		ExpiryTime: cfg.Auth.SessionTTL,
	})
}

// ProvideDependencyChecks lists the services /ready pings.
func ProvideDependencyChecks(store *graphdb.GraphStore, repo *mongodb.ConversationRepository, client *redis.Client) []handlers.DependencyCheck {
	checks := []handlers.DependencyCheck{
		{Name: "neo4j", Ping: store.Ping},
		{Name: "mongodb", Ping: repo.Ping},
	}
	if client != nil {
		checks = append(checks, handlers.DependencyCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
	}
	return checks
}

// ProvideRouterConfig extracts the transport settings.
func ProvideRouterConfig(cfg *config.Config) rest.RouterConfig {
	return rest.RouterConfig{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		SessionCookie:    cfg.Auth.CookieName,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimitWindow:  cfg.RateLimit.Window,
		MetricsEnabled:   cfg.Metrics.Enabled,
	}
}
