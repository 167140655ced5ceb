package graph

// Depth is the traversal hop count used to build a context.
type Depth int

const (
	DepthShallow  Depth = 1
	DepthDefault  Depth = 2
	DepthExtended Depth = 3
)

// Valid reports whether d is one of the supported depths.
func (d Depth) Valid() bool {
	return d >= DepthShallow && d <= DepthExtended
}

// OrDefault returns d, or DepthDefault when d is not supported.
func (d Depth) OrDefault() Depth {
	if d.Valid() {
		return d
	}
	return DepthDefault
}

// EnrichedContext is the result of the relevance pass over a serialized
// context. RelevantNodes are built from model output and are not a subset of
// the base context's nodes.
type EnrichedContext struct {
	RelevantNodes      []Node   `json:"relevantNodes"`
	KeyInsights        []string `json:"keyInsights"`
	MissingInformation []string `json:"missingInformation"`
	RecommendedDepth   Depth    `json:"recommendedDepth"`
}

// EmptyEnrichedContext is the value used whenever enrichment output cannot
// be used.
func EmptyEnrichedContext() EnrichedContext {
	return EnrichedContext{
		RelevantNodes:      []Node{},
		KeyInsights:        []string{},
		MissingInformation: []string{},
		RecommendedDepth:   DepthDefault,
	}
}
