package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/application/ports"
	"github.com/mrsidrdx/context-graph-ai/domain/graph"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
	"github.com/mrsidrdx/context-graph-ai/pkg/observability"
)

// DefaultEnrichmentMaxTokens bounds the analysis response.
const DefaultEnrichmentMaxTokens = 2048

const analysisPromptTemplate = `Given this user context graph:
%s

And this user question:
"%s"

Analyze and enrich the context by:
1. Identifying the most relevant nodes and relationships
2. Scoring each element's relevance (0-1)
3. Extracting key insights that connect to the question
4. Flagging any missing information that would improve the answer

Return ONLY valid JSON with this exact structure:
{
  "relevantNodes": [{"id": "string", "type": "Document|Project|Topic|Concept", "properties": {}, "relevanceScore": 0.0, "reason": "string"}],
  "keyInsights": ["string"],
  "missingInformation": ["string"],
  "recommendedDepth": 1
}`

// jsonObjectPattern spans from the first '{' to the last '}'.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// AnalysisPrompt builds the relevance analysis request for a question.
func AnalysisPrompt(contextString, question string) string {
	return fmt.Sprintf(analysisPromptTemplate, contextString, question)
}

type rawEnrichment struct {
	RelevantNodes      []map[string]interface{} `json:"relevantNodes"`
	KeyInsights        []interface{}            `json:"keyInsights"`
	MissingInformation []interface{}            `json:"missingInformation"`
	RecommendedDepth   interface{}              `json:"recommendedDepth"`
}

// ParseEnrichment extracts the enrichment object embedded in model output.
// Every node is normalized to the full node shape and an absent or
// unsupported recommended depth becomes the default. When no JSON object can
// be decoded it returns the empty enrichment together with a parse error.
func ParseEnrichment(text string) (graph.EnrichedContext, error) {
	match := jsonObjectPattern.FindString(text)
	if match == "" {
		return graph.EmptyEnrichedContext(), errors.NewParseError("no JSON object in enrichment output", nil)
	}

	var raw rawEnrichment
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return graph.EmptyEnrichedContext(), errors.NewParseError("invalid enrichment JSON", err)
	}

	out := graph.EmptyEnrichedContext()
	for _, rn := range raw.RelevantNodes {
		out.RelevantNodes = append(out.RelevantNodes, normalizeNode(rn))
	}
	out.KeyInsights = stringsOf(raw.KeyInsights)
	out.MissingInformation = stringsOf(raw.MissingInformation)
	if f, ok := raw.RecommendedDepth.(float64); ok {
		if d := graph.Depth(f); float64(d) == f && d.Valid() {
			out.RecommendedDepth = d
		}
	}
	return out, nil
}

func normalizeNode(raw map[string]interface{}) graph.Node {
	n := graph.Node{Type: graph.KindTopic, Properties: map[string]interface{}{}}
	if id, ok := raw["id"].(string); ok {
		n.ID = id
	}
	if t, ok := raw["type"].(string); ok {
		n.Type, _ = graph.ParseNodeKind(t)
	}
	if props, ok := raw["properties"].(map[string]interface{}); ok {
		n.Properties = props
	}
	score, _ := raw["relevanceScore"].(float64)
	score = math.Max(0, math.Min(1, score))
	n.RelevanceScore = &score
	if reason, ok := raw["reason"].(string); ok {
		n.Reason = reason
	}
	return n
}

func stringsOf(items []interface{}) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// EnricherConfig tunes the analysis call.
type EnricherConfig struct {
	MaxTokens int
	Timeout   time.Duration
}

// Enricher runs the relevance analysis pass over a serialized context.
type Enricher struct {
	generator ports.TextGenerator
	config    EnricherConfig
	logger    *zap.Logger
}

// NewEnricher creates an enricher on generator.
func NewEnricher(generator ports.TextGenerator, config EnricherConfig, logger *zap.Logger) *Enricher {
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultEnrichmentMaxTokens
	}
	return &Enricher{generator: generator, config: config, logger: logger}
}

// AnalyzeContext never fails: any provider or parse failure yields the
// empty enrichment.
func (e *Enricher) AnalyzeContext(ctx context.Context, contextString, question string) graph.EnrichedContext {
	enriched, err := e.AnalyzeContextStrict(ctx, contextString, question)
	if err != nil {
		e.logger.Warn("context enrichment failed, using defaults", zap.Error(err))
		return graph.EmptyEnrichedContext()
	}
	return enriched
}

// AnalyzeContextStrict reports provider failures to the caller. Output that
// cannot be parsed still degrades to the empty enrichment with a nil error.
func (e *Enricher) AnalyzeContextStrict(ctx context.Context, contextString, question string) (graph.EnrichedContext, error) {
	ctx, span := observability.StartSpan(ctx, "context.enrich")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	text, err := e.generator.Generate(ctx, ports.GenerateRequest{
		UserMessage: AnalysisPrompt(contextString, question),
		MaxTokens:   e.config.MaxTokens,
	})
	if err != nil {
		return graph.EmptyEnrichedContext(), err
	}

	enriched, parseErr := ParseEnrichment(text)
	if parseErr != nil {
		e.logger.Warn("unparseable enrichment output", zap.Error(parseErr))
	}
	return enriched, nil
}
