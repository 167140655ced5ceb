package graphdb

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mrsidrdx/context-graph-ai/domain/graph"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
)

// DecodeResult converts a {nodes: [...], relationships: [...]} map produced by
// a traversal into a RawResult. Node and relationship maps without the
// expected shape are skipped rather than failing the whole row; null entries
// from OPTIONAL MATCH collections are common.
func DecodeResult(value any) (graph.RawResult, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return graph.RawResult{}, errors.Newf("unexpected result type %T", value)
	}

	var out graph.RawResult
	for _, item := range asList(m["nodes"]) {
		nm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out.Nodes = append(out.Nodes, graph.RawNode{
			ID:         asString(nm["id"]),
			Labels:     asStrings(nm["labels"]),
			Properties: convertProps(nm["properties"]),
		})
	}
	for _, item := range asList(m["relationships"]) {
		rm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out.Relationships = append(out.Relationships, graph.RawRelationship{
			StartNodeID: asString(rm["startNodeId"]),
			EndNodeID:   asString(rm["endNodeId"]),
			Type:        asString(rm["type"]),
			Properties:  convertProps(rm["properties"]),
		})
	}
	return out, nil
}

func asList(v any) []any {
	list, _ := v.([]any)
	return list
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStrings(v any) []string {
	var out []string
	for _, item := range asList(v) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func convertProps(v any) map[string]interface{} {
	props := make(map[string]interface{})
	m, ok := v.(map[string]any)
	if !ok {
		return props
	}
	for k, val := range m {
		props[k] = convertValue(val)
	}
	return props
}

// convertValue maps driver temporal types onto strings and numbers onto
// json.Number so that contexts survive a JSON round trip through the cache
// unchanged.
func convertValue(v any) any {
	switch t := v.(type) {
	case int64:
		return json.Number(strconv.FormatInt(t, 10))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return t
		}
		// Same text encoding/json writes for the value.
		data, err := json.Marshal(t)
		if err != nil {
			return t
		}
		return json.Number(data)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case neo4j.Date:
		return t.Time().Format("2006-01-02")
	case neo4j.LocalDateTime:
		return t.Time().Format("2006-01-02T15:04:05.999999999")
	case neo4j.LocalTime:
		return t.Time().Format("15:04:05.999999999")
	case neo4j.Time:
		return t.Time().Format("15:04:05.999999999Z07:00")
	case neo4j.Duration:
		return t.String()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = convertValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = convertValue(item)
		}
		return out
	default:
		return v
	}
}
