package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/application/ports/mocks"
	"github.com/mrsidrdx/context-graph-ai/domain/graph"
	"github.com/mrsidrdx/context-graph-ai/infrastructure/cache"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
)

func rawNode(id string, labels ...string) graph.RawNode {
	return graph.RawNode{ID: id, Labels: labels, Properties: map[string]interface{}{"name": id}}
}

func sampleRows() []graph.RawResult {
	return []graph.RawResult{{
		Nodes: []graph.RawNode{
			rawNode("u1", "User"),
			rawNode("t1", "Topic"),
			rawNode("d1", "Document"),
			rawNode("t1", "Topic"),
			{ID: ""},
			rawNode("c1", "Concept"),
		},
		Relationships: []graph.RawRelationship{
			{StartNodeID: "d1", EndNodeID: "t1", Type: "TAGGED_WITH"},
			{StartNodeID: "d1", EndNodeID: "", Type: "TAGGED_WITH"},
			{StartNodeID: "p9", EndNodeID: "c1", Type: "USES"},
		},
	}}
}

func newContextService(store *mocks.GraphStore, c *mocks.Cache) *ContextService {
	return NewContextService(store, c, ContextServiceConfig{CacheTTL: time.Minute}, nil, zap.NewNop())
}

func TestGetUserContext(t *testing.T) {
	ctx := context.Background()
	params := map[string]interface{}{"userId": "u1"}

	t.Run("Should query, normalize and cache on miss", func(t *testing.T) {
		store := new(mocks.GraphStore)
		c := new(mocks.Cache)
		c.On("Get", mock.Anything, "context:u1:2").Return(nil, false, nil)
		store.On("QueryContext", mock.Anything, depthTwoQuery, params).Return(sampleRows(), nil)
		c.On("Set", mock.Anything, "context:u1:2", mock.Anything, time.Minute).Return(nil)

		gc, err := newContextService(store, c).GetUserContext(ctx, "u1", graph.DepthDefault)
		require.NoError(t, err)

		ids := make([]string, 0, len(gc.Nodes))
		for _, n := range gc.Nodes {
			ids = append(ids, n.ID)
		}
		assert.Equal(t, []string{"u1", "t1", "d1", "c1"}, ids)
		assert.Len(t, gc.Relationships, 2, "dangling endpoint kept, empty endpoint dropped")
		require.NotNil(t, gc.Statistics)
		assert.Equal(t, len(gc.Nodes), gc.Statistics.TotalNodes)
		assert.Equal(t, len(gc.Relationships), gc.Statistics.TotalRelationships)
		assert.Equal(t, 0, gc.Statistics.RelevantNodes)

		store.AssertExpectations(t)
		c.AssertExpectations(t)
	})

	t.Run("Should return the cached context without querying", func(t *testing.T) {
		cached := graph.NewContext([]graph.Node{{ID: "u1", Type: graph.KindUser, Properties: map[string]interface{}{}}}, nil)
		data, err := json.Marshal(cached)
		require.NoError(t, err)

		store := new(mocks.GraphStore)
		c := new(mocks.Cache)
		c.On("Get", mock.Anything, "context:u1:1").Return(data, true, nil)

		gc, err := newContextService(store, c).GetUserContext(ctx, "u1", graph.DepthShallow)
		require.NoError(t, err)
		assert.Equal(t, cached, gc)
		store.AssertNotCalled(t, "QueryContext", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should treat cache failures as misses", func(t *testing.T) {
		store := new(mocks.GraphStore)
		c := new(mocks.Cache)
		c.On("Get", mock.Anything, "context:u1:3").Return(nil, false, errors.New("redis down"))
		store.On("QueryContext", mock.Anything, depthThreeQuery, params).Return(sampleRows(), nil)
		c.On("Set", mock.Anything, "context:u1:3", mock.Anything, time.Minute).Return(errors.New("redis down"))

		gc, err := newContextService(store, c).GetUserContext(ctx, "u1", graph.DepthExtended)
		require.NoError(t, err)
		assert.Len(t, gc.Nodes, 4)
	})

	t.Run("Should fail with a graph query error and cache nothing", func(t *testing.T) {
		store := new(mocks.GraphStore)
		c := new(mocks.Cache)
		c.On("Get", mock.Anything, "context:u1:2").Return(nil, false, nil)
		store.On("QueryContext", mock.Anything, depthTwoQuery, params).Return(nil, errors.New("connection refused"))

		_, err := newContextService(store, c).GetUserContext(ctx, "u1", graph.DepthDefault)
		require.Error(t, err)
		assert.True(t, errors.IsGraphQuery(err))
		c.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should fall back to the default depth", func(t *testing.T) {
		store := new(mocks.GraphStore)
		c := new(mocks.Cache)
		c.On("Get", mock.Anything, "context:u1:2").Return(nil, false, nil)
		store.On("QueryContext", mock.Anything, depthTwoQuery, params).Return(nil, nil)
		c.On("Set", mock.Anything, "context:u1:2", mock.Anything, time.Minute).Return(nil)

		gc, err := newContextService(store, c).GetUserContext(ctx, "u1", graph.Depth(7))
		require.NoError(t, err)
		assert.Empty(t, gc.Nodes)
		assert.Equal(t, 0, gc.Statistics.TotalNodes)
	})
}

func TestGetUserContextInvariantsForAllDepths(t *testing.T) {
	for _, depth := range []graph.Depth{graph.DepthShallow, graph.DepthDefault, graph.DepthExtended} {
		store := new(mocks.GraphStore)
		store.On("QueryContext", mock.Anything, contextQuery(depth), mock.Anything).Return(sampleRows(), nil)
		mem := cache.NewMemoryCache(0)
		defer mem.Close()
		svc := NewContextService(store, mem, ContextServiceConfig{}, nil, zap.NewNop())

		gc, err := svc.GetUserContext(context.Background(), "u1", depth)
		require.NoError(t, err)

		seen := map[string]bool{}
		for _, n := range gc.Nodes {
			assert.False(t, seen[n.ID], "duplicate id %s at depth %d", n.ID, depth)
			seen[n.ID] = true
		}
		assert.Equal(t, len(gc.Nodes), gc.Statistics.TotalNodes)
		assert.Equal(t, len(gc.Relationships), gc.Statistics.TotalRelationships)
	}
}

func TestGetUserContextIsIdempotentWithinTTL(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryCache(0)
	defer mem.Close()

	store := new(mocks.GraphStore)
	store.On("QueryContext", mock.Anything, depthTwoQuery, mock.Anything).Return(sampleRows(), nil).Once()
	store.On("QueryContext", mock.Anything, depthTwoQuery, mock.Anything).Return([]graph.RawResult{{
		Nodes: []graph.RawNode{rawNode("u1", "User"), rawNode("new", "Project")},
	}}, nil)

	svc := NewContextService(store, mem, ContextServiceConfig{CacheTTL: time.Minute}, nil, zap.NewNop())

	first, err := svc.GetUserContext(ctx, "u1", graph.DepthDefault)
	require.NoError(t, err)
	second, err := svc.GetUserContext(ctx, "u1", graph.DepthDefault)
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.JSONEq(t, string(a), string(b))
	store.AssertNumberOfCalls(t, "QueryContext", 1)

	svc.InvalidateUserContext(ctx, "u1")
	third, err := svc.GetUserContext(ctx, "u1", graph.DepthDefault)
	require.NoError(t, err)
	assert.Len(t, third.Nodes, 2)
}

func TestGetUserContextCacheHitRendersLikeMiss(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryCache(0)
	defer mem.Close()

	store := new(mocks.GraphStore)
	store.On("QueryContext", mock.Anything, depthTwoQuery, mock.Anything).Return([]graph.RawResult{{
		Nodes: []graph.RawNode{
			rawNode("u1", "User"),
			{ID: "p1", Labels: []string{"Project"}, Properties: map[string]interface{}{
				"name":        "Atlas",
				"status":      int64(1234567),
				"description": int64(9007199254740993),
			}},
		},
	}}, nil).Once()

	svc := NewContextService(store, mem, ContextServiceConfig{CacheTTL: time.Minute}, nil, zap.NewNop())

	miss, err := svc.GetUserContext(ctx, "u1", graph.DepthDefault)
	require.NoError(t, err)
	hit, err := svc.GetUserContext(ctx, "u1", graph.DepthDefault)
	require.NoError(t, err)

	store.AssertNumberOfCalls(t, "QueryContext", 1)
	assert.Equal(t, ContextToString(miss), ContextToString(hit))
	assert.Contains(t, ContextToString(hit), "- Atlas (1234567): 9007199254740993")
}

func TestInvalidateUserContext(t *testing.T) {
	c := new(mocks.Cache)
	c.On("Delete", mock.Anything, "context:u1:1").Return(nil)
	c.On("Delete", mock.Anything, "context:u1:2").Return(errors.New("ignored"))
	c.On("Delete", mock.Anything, "context:u1:3").Return(nil)

	newContextService(new(mocks.GraphStore), c).InvalidateUserContext(context.Background(), "u1")
	c.AssertExpectations(t)
}
