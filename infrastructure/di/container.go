// Package di assembles the application with google/wire. wire.go declares the
// provider sets; wire_gen.go is generated from it.
package di

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/application/ports"
	"github.com/mrsidrdx/context-graph-ai/application/services"
	"github.com/mrsidrdx/context-graph-ai/infrastructure/config"
	"github.com/mrsidrdx/context-graph-ai/infrastructure/persistence/graphdb"
	"github.com/mrsidrdx/context-graph-ai/infrastructure/persistence/mongodb"
	"github.com/mrsidrdx/context-graph-ai/interfaces/http/rest"
	"github.com/mrsidrdx/context-graph-ai/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	ConfigWatcher *config.Watcher
	Logger        *zap.Logger
	LogLevel      zap.AtomicLevel
	Metrics       *observability.Collector
	Tracer        *observability.TracerProvider

	Neo4jDriver   neo4j.DriverWithContext
	GraphStore    *graphdb.GraphStore
	MongoClient   *mongo.Client
	Conversations *mongodb.ConversationRepository
	Redis         *redis.Client
	Cache         ports.Cache
	RateLimiter   ports.RateLimiter
	Generator     ports.TextGenerator

	ContextService      *services.ContextService
	Enricher            *services.Enricher
	AgentService        *services.AgentService
	ConversationService *services.ConversationService

	Router *rest.Router
}
