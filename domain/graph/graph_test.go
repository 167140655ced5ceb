package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindFromLabels(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   NodeKind
	}{
		{"user", []string{"User"}, KindUser},
		{"user wins over document", []string{"Document", "User"}, KindUser},
		{"document wins over topic", []string{"Topic", "Document"}, KindDocument},
		{"project", []string{"Project"}, KindProject},
		{"concept", []string{"Concept"}, KindConcept},
		{"unknown defaults to topic", []string{"Person"}, KindTopic},
		{"no labels defaults to topic", nil, KindTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindFromLabels(tt.labels))
		})
	}
}

func TestNodeKindJSON(t *testing.T) {
	data, err := json.Marshal(Node{ID: "p1", Type: KindProject})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"Project"`)

	var n Node
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","type":"Whatever"}`), &n))
	assert.Equal(t, KindTopic, n.Type)
}

func TestNormalizeResults(t *testing.T) {
	t.Run("Should return an empty context for no rows", func(t *testing.T) {
		ctx := NormalizeResults(nil)

		assert.Empty(t, ctx.Nodes)
		assert.Empty(t, ctx.Relationships)
		require.NotNil(t, ctx.Statistics)
		assert.Equal(t, 0, ctx.Statistics.TotalNodes)
	})

	t.Run("Should deduplicate nodes keeping the first occurrence", func(t *testing.T) {
		ctx := NormalizeResults([]RawResult{{
			Nodes: []RawNode{
				{ID: "u1", Labels: []string{"User"}, Properties: map[string]interface{}{"name": "Ada"}},
				{ID: "t1", Labels: []string{"Topic"}, Properties: map[string]interface{}{"name": "Graphs"}},
				{ID: "t1", Labels: []string{"Topic"}, Properties: map[string]interface{}{"name": "Duplicate"}},
				{ID: "", Labels: []string{"Topic"}},
				{ID: "d1", Labels: []string{"Document"}},
			},
		}})

		require.Len(t, ctx.Nodes, 3)
		assert.Equal(t, []string{"u1", "t1", "d1"}, []string{ctx.Nodes[0].ID, ctx.Nodes[1].ID, ctx.Nodes[2].ID})
		assert.Equal(t, "Graphs", ctx.Nodes[1].Properties["name"])
		assert.NotNil(t, ctx.Nodes[2].Properties)
	})

	t.Run("Should keep dangling relationships and drop incomplete ones", func(t *testing.T) {
		ctx := NormalizeResults([]RawResult{{
			Nodes: []RawNode{{ID: "d1", Labels: []string{"Document"}}},
			Relationships: []RawRelationship{
				{StartNodeID: "d1", EndNodeID: "missing", Type: "TAGGED_WITH"},
				{StartNodeID: "", EndNodeID: "t1", Type: "TAGGED_WITH"},
				{StartNodeID: "p1", EndNodeID: "", Type: "USES"},
			},
		}})

		require.Len(t, ctx.Relationships, 1)
		assert.Equal(t, "missing", ctx.Relationships[0].To)
	})

	t.Run("Should compute statistics from the lists", func(t *testing.T) {
		ctx := NormalizeResults([]RawResult{{
			Nodes: []RawNode{
				{ID: "u1", Labels: []string{"User"}},
				{ID: "t1", Labels: []string{"Topic"}},
				{ID: "t2", Labels: []string{"Topic"}},
			},
			Relationships: []RawRelationship{
				{StartNodeID: "t1", EndNodeID: "t2", Type: "RELATED_TO"},
			},
		}})

		stats := ctx.Statistics
		require.NotNil(t, stats)
		assert.Equal(t, len(ctx.Nodes), stats.TotalNodes)
		assert.Equal(t, len(ctx.Relationships), stats.TotalRelationships)
		assert.Equal(t, 0, stats.RelevantNodes)
		assert.Equal(t, map[string]int{"User": 1, "Topic": 2}, stats.NodeTypes)
		assert.Equal(t, map[string]int{"RELATED_TO": 1}, stats.RelationshipTypes)
	})
}

func TestComputeStatisticsCountsRelevantNodes(t *testing.T) {
	high, low := 0.9, 0.5
	stats := ComputeStatistics([]Node{
		{ID: "a", RelevanceScore: &high},
		{ID: "b", RelevanceScore: &low},
		{ID: "c"},
	}, nil)

	assert.Equal(t, 1, stats.RelevantNodes)
}

func TestDepth(t *testing.T) {
	assert.Equal(t, DepthShallow, Depth(1).OrDefault())
	assert.Equal(t, DepthExtended, Depth(3).OrDefault())
	assert.Equal(t, DepthDefault, Depth(0).OrDefault())
	assert.Equal(t, DepthDefault, Depth(7).OrDefault())
}

func TestDecodeContext(t *testing.T) {
	t.Run("Should keep large integers exact", func(t *testing.T) {
		original := NewContext([]Node{{
			ID:   "p1",
			Type: KindProject,
			Properties: map[string]interface{}{
				"status":      int64(1234567),
				"description": int64(9007199254740993),
			},
		}}, nil)
		data, err := json.Marshal(original)
		require.NoError(t, err)

		decoded, err := DecodeContext(data)
		require.NoError(t, err)
		require.Len(t, decoded.Nodes, 1)
		props := decoded.Nodes[0].Properties
		assert.Equal(t, json.Number("1234567"), props["status"])
		assert.Equal(t, json.Number("9007199254740993"), props["description"])
		assert.Equal(t, original.Statistics, decoded.Statistics)
	})

	t.Run("Should reject malformed input", func(t *testing.T) {
		_, err := DecodeContext([]byte("{"))
		assert.Error(t, err)
	})
}
