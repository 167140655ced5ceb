// Package graph defines the typed view of a user's knowledge graph that the
// chat pipeline works with: node kinds, nodes, relationships and the bounded
// context snapshot built from them.
package graph

import (
	"encoding/json"
	"fmt"
)

// NodeKind is the closed set of node types known to the pipeline.
type NodeKind int

const (
	KindTopic NodeKind = iota
	KindUser
	KindDocument
	KindProject
	KindConcept
)

var kindNames = map[NodeKind]string{
	KindUser:     "User",
	KindDocument: "Document",
	KindTopic:    "Topic",
	KindProject:  "Project",
	KindConcept:  "Concept",
}

// labelPriority decides which kind wins when a node carries several labels.
var labelPriority = []NodeKind{KindUser, KindDocument, KindTopic, KindProject, KindConcept}

// String returns the label name of the kind.
func (k NodeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindTopic]
}

// ParseNodeKind maps a kind name back to a NodeKind.
func ParseNodeKind(name string) (NodeKind, bool) {
	for kind, n := range kindNames {
		if n == name {
			return kind, true
		}
	}
	return KindTopic, false
}

// KindFromLabels picks the kind of a raw graph node. Unknown label sets map
// to Topic.
func KindFromLabels(labels []string) NodeKind {
	for _, kind := range labelPriority {
		name := kindNames[kind]
		for _, label := range labels {
			if label == name {
				return kind
			}
		}
	}
	return KindTopic
}

// MarshalJSON encodes the kind as its label name.
func (k NodeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts a label name. Unknown names decode as Topic.
func (k *NodeKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("node kind must be a string: %w", err)
	}
	*k, _ = ParseNodeKind(name)
	return nil
}

// Node is a single vertex of the context graph.
type Node struct {
	ID             string                 `json:"id"`
	Type           NodeKind               `json:"type"`
	Properties     map[string]interface{} `json:"properties"`
	RelevanceScore *float64               `json:"relevanceScore,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
}

// Score returns the relevance score, zero when unscored.
func (n Node) Score() float64 {
	if n.RelevanceScore == nil {
		return 0
	}
	return *n.RelevanceScore
}

// Relationship is a directed, typed edge between two node ids. Endpoints are
// not required to be present in the surrounding node set.
type Relationship struct {
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
}

// RawNode is a node as returned by a traversal, before kind mapping.
type RawNode struct {
	ID         string
	Labels     []string
	Properties map[string]interface{}
}

// RawRelationship is an edge as returned by a traversal.
type RawRelationship struct {
	StartNodeID string
	EndNodeID   string
	Type        string
	Properties  map[string]interface{}
}

// RawResult is one result row of a context traversal.
type RawResult struct {
	Nodes         []RawNode
	Relationships []RawRelationship
}
