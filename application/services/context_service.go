// Package services implements the chat pipeline: building a user's graph
// context, serializing and enriching it, assembling prompts and streaming
// answers, plus conversation management.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/application/ports"
	"github.com/mrsidrdx/context-graph-ai/domain/graph"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
	"github.com/mrsidrdx/context-graph-ai/pkg/observability"
)

// DefaultContextTTL is how long a built context is served from cache.
const DefaultContextTTL = 5 * time.Minute

// ContextServiceConfig tunes context building.
type ContextServiceConfig struct {
	CacheTTL time.Duration
	Timeout  time.Duration
}

// ContextService builds the bounded graph neighbourhood of a user, reading
// through the cache.
type ContextService struct {
	store   ports.GraphStore
	cache   ports.Cache
	config  ContextServiceConfig
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewContextService creates a new context service
func NewContextService(
	store ports.GraphStore,
	cache ports.Cache,
	config ContextServiceConfig,
	metrics *observability.Collector,
	logger *zap.Logger,
) *ContextService {
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultContextTTL
	}
	return &ContextService{
		store:   store,
		cache:   cache,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

func contextCacheKey(userID string, depth graph.Depth) string {
	return fmt.Sprintf("context:%s:%d", userID, depth)
}

// GetUserContext returns the context of userID at depth. A cached context is
// returned unchanged; otherwise the traversal runs and its normalized result
// is cached. Cache failures are logged and treated as misses. A failed
// traversal is returned as a graph query error and nothing is cached.
func (s *ContextService) GetUserContext(ctx context.Context, userID string, depth graph.Depth) (graph.Context, error) {
	if !depth.Valid() {
		depth = graph.DepthDefault
	}

	ctx, span := observability.StartSpan(ctx, "context.build",
		attribute.String("user.id", userID),
		attribute.Int("context.depth", int(depth)),
	)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	key := contextCacheKey(userID, depth)
	if cached, ok := s.fromCache(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}

	queryCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := s.store.QueryContext(queryCtx, contextQuery(depth), map[string]interface{}{"userId": userID})
	s.metrics.ObserveGraphQuery(int(depth), err, time.Since(start))
	if err != nil {
		err = errors.NewGraphQueryError("user context", err)
		return graph.Context{}, err
	}

	result := graph.NormalizeResults(rows)
	s.toCache(ctx, key, result)

	s.logger.Debug("built user context",
		zap.String("userId", userID),
		zap.Int("depth", int(depth)),
		zap.Int("nodes", len(result.Nodes)),
		zap.Int("relationships", len(result.Relationships)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// InvalidateUserContext drops the cached contexts of userID at every depth.
func (s *ContextService) InvalidateUserContext(ctx context.Context, userID string) {
	for d := graph.DepthShallow; d <= graph.DepthExtended; d++ {
		if err := s.cache.Delete(ctx, contextCacheKey(userID, d)); err != nil {
			s.logger.Warn("context cache delete failed", zap.String("userId", userID), zap.Error(err))
		}
	}
}

func (s *ContextService) fromCache(ctx context.Context, key string) (graph.Context, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("context cache read failed", zap.String("key", key), zap.Error(err))
	}
	if err != nil || !ok {
		s.metrics.RecordCache(false)
		return graph.Context{}, false
	}

	cached, err := graph.DecodeContext(data)
	if err != nil {
		s.logger.Warn("discarding undecodable cached context", zap.String("key", key), zap.Error(err))
		s.metrics.RecordCache(false)
		return graph.Context{}, false
	}
	s.metrics.RecordCache(true)
	return cached, true
}

func (s *ContextService) toCache(ctx context.Context, key string, value graph.Context) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("context not cacheable", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, data, s.config.CacheTTL); err != nil {
		s.logger.Warn("context cache write failed", zap.String("key", key), zap.Error(err))
	}
}
