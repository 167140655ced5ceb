//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/mrsidrdx/context-graph-ai/application/ports"
	"github.com/mrsidrdx/context-graph-ai/application/services"
	"github.com/mrsidrdx/context-graph-ai/infrastructure/config"
	"github.com/mrsidrdx/context-graph-ai/infrastructure/persistence/graphdb"
	"github.com/mrsidrdx/context-graph-ai/infrastructure/persistence/mongodb"
	"github.com/mrsidrdx/context-graph-ai/interfaces/http/rest"
	"github.com/mrsidrdx/context-graph-ai/interfaces/http/rest/handlers"
)

// InfrastructureSet provides logging, telemetry and the backing stores.
var InfrastructureSet = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideConfigWatcher,
	ProvideMetrics,
	ProvideTracer,
	ProvideNeo4jDriver,
	ProvideGraphStore,
	ProvideMongoClient,
	ProvideConversationRepository,
	ProvideRedisClient,
	ProvideCache,
	ProvideRateLimiter,
	ProvideTextGenerator,
	wire.Bind(new(ports.GraphStore), new(*graphdb.GraphStore)),
	wire.Bind(new(ports.ConversationRepository), new(*mongodb.ConversationRepository)),
)

// ApplicationSet provides the chat pipeline and conversation services.
var ApplicationSet = wire.NewSet(
	ProvideContextService,
	ProvideEnricher,
	ProvideAgentService,
	services.NewConversationService,
)

// InterfaceSet provides the HTTP layer.
var InterfaceSet = wire.NewSet(
	ProvideErrorHandler,
	ProvideJWTValidator,
	ProvideDependencyChecks,
	ProvideRouterConfig,
	handlers.NewChatHandler,
	handlers.NewConversationHandler,
	handlers.NewContextHandler,
	handlers.NewHealthHandler,
	rest.NewRouter,
	wire.Bind(new(handlers.ChatPipeline), new(*services.AgentService)),
	wire.Bind(new(handlers.Conversations), new(*services.ConversationService)),
	wire.Bind(new(handlers.UserContexts), new(*services.ContextService)),
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	InfrastructureSet,
	ApplicationSet,
	InterfaceSet,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The returned cleanup
// releases every resource in reverse order of creation.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
