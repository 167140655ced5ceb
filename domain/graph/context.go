package graph

import (
	"bytes"
	"encoding/json"
)

// RelevanceThreshold is the score above which a node counts as relevant in
// the context statistics.
const RelevanceThreshold = 0.5

// Statistics summarises a context. It is derived from the node and
// relationship lists and never maintained separately.
type Statistics struct {
	TotalNodes         int            `json:"totalNodes"`
	TotalRelationships int            `json:"totalRelationships"`
	RelevantNodes      int            `json:"relevantNodes"`
	NodeTypes          map[string]int `json:"nodeTypes"`
	RelationshipTypes  map[string]int `json:"relationshipTypes"`
}

// Context is a bounded snapshot of a user's graph neighbourhood.
type Context struct {
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
	Statistics    *Statistics    `json:"statistics,omitempty"`
}

// NewContext builds a context and computes its statistics.
func NewContext(nodes []Node, relationships []Relationship) Context {
	if nodes == nil {
		nodes = []Node{}
	}
	if relationships == nil {
		relationships = []Relationship{}
	}
	stats := ComputeStatistics(nodes, relationships)
	return Context{
		Nodes:         nodes,
		Relationships: relationships,
		Statistics:    &stats,
	}
}

// ComputeStatistics derives the aggregate counts of a node/relationship set.
func ComputeStatistics(nodes []Node, relationships []Relationship) Statistics {
	stats := Statistics{
		TotalNodes:         len(nodes),
		TotalRelationships: len(relationships),
		NodeTypes:          make(map[string]int),
		RelationshipTypes:  make(map[string]int),
	}
	for _, n := range nodes {
		stats.NodeTypes[n.Type.String()]++
		if n.Score() > RelevanceThreshold {
			stats.RelevantNodes++
		}
	}
	for _, r := range relationships {
		stats.RelationshipTypes[r.Type]++
	}
	return stats
}

// NormalizeResults converts raw traversal rows into a Context. Only the first
// row is used. Nodes are deduplicated by id keeping the first occurrence and
// its position; nodes without an id and relationships missing an endpoint are
// dropped.
func NormalizeResults(results []RawResult) Context {
	if len(results) == 0 {
		return NewContext(nil, nil)
	}
	raw := results[0]

	seen := make(map[string]struct{}, len(raw.Nodes))
	nodes := make([]Node, 0, len(raw.Nodes))
	for _, rn := range raw.Nodes {
		if rn.ID == "" {
			continue
		}
		if _, dup := seen[rn.ID]; dup {
			continue
		}
		seen[rn.ID] = struct{}{}

		props := rn.Properties
		if props == nil {
			props = map[string]interface{}{}
		}
		nodes = append(nodes, Node{
			ID:         rn.ID,
			Type:       KindFromLabels(rn.Labels),
			Properties: props,
		})
	}

	relationships := make([]Relationship, 0, len(raw.Relationships))
	for _, rr := range raw.Relationships {
		if rr.StartNodeID == "" || rr.EndNodeID == "" {
			continue
		}
		props := rr.Properties
		if props == nil {
			props = map[string]interface{}{}
		}
		relationships = append(relationships, Relationship{
			From:       rr.StartNodeID,
			To:         rr.EndNodeID,
			Type:       rr.Type,
			Properties: props,
		})
	}

	return NewContext(nodes, relationships)
}

// NodesOfKind returns the nodes of one kind in context order.
func (c Context) NodesOfKind(kind NodeKind) []Node {
	var out []Node
	for _, n := range c.Nodes {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

// CountKind returns how many nodes of one kind the context holds.
func (c Context) CountKind(kind NodeKind) int {
	count := 0
	for _, n := range c.Nodes {
		if n.Type == kind {
			count++
		}
	}
	return count
}

// DecodeContext decodes a JSON-encoded context. Numeric properties decode as
// json.Number so integers keep their exact value and printed form.
func DecodeContext(data []byte) (Context, error) {
	var c Context
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&c); err != nil {
		return Context{}, err
	}
	return c, nil
}
