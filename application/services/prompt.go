package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/mrsidrdx/context-graph-ai/domain/conversation"
	"github.com/mrsidrdx/context-graph-ai/domain/graph"
)

// SystemPrompt instructs the assistant for every streamed answer.
const SystemPrompt = `You are a context-aware AI assistant with access to the user's personal knowledge graph. Your goal is to provide accurate, personalized responses based on their documents, projects, interests, and concepts.

CONTEXT AVAILABLE:
- Recent documents the user owns
- Topics they're interested in
- Active projects they're working on
- Related concepts and relationships

GUIDELINES:
1. Cite specific documents or projects when referencing information
2. Be concise but comprehensive
3. If context is insufficient, acknowledge limitations
4. Suggest related topics the user might explore
5. Maintain conversation history awareness

RESPONSE FORMAT:
- Start with a direct answer
- Provide supporting details from context
- End with a relevant follow-up question or suggestion (if appropriate)`

const (
	// DefaultHistoryTurns is how many prior turns are replayed to the model.
	DefaultHistoryTurns = 10

	relevantNodeLimit = 5
)

// HistoryTurn is one prior message replayed as conversation history.
type HistoryTurn struct {
	Role    conversation.Role
	Content string
}

// HistoryFromMessages converts stored messages to history turns.
func HistoryFromMessages(messages []conversation.Message) []HistoryTurn {
	turns := make([]HistoryTurn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, HistoryTurn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// FormatHistory renders the last limit turns as "ROLE: content" lines.
func FormatHistory(turns []HistoryTurn, limit int) string {
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, strings.ToUpper(string(t.Role))+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

// BuildUserMessage assembles the model input. History and each enrichment
// block appear only when non-empty; the question always comes last.
func BuildUserMessage(question, contextString string, enriched *graph.EnrichedContext, history string) string {
	var b strings.Builder

	if history != "" {
		b.WriteString("CONVERSATION HISTORY:\n" + history + "\n\n")
	}
	b.WriteString("USER CONTEXT:\n" + contextString + "\n\n")

	if enriched != nil {
		if len(enriched.KeyInsights) > 0 {
			b.WriteString("KEY INSIGHTS:\n" + bullets(enriched.KeyInsights) + "\n\n")
		}
		if len(enriched.MissingInformation) > 0 {
			b.WriteString("NOTE - Missing information that might help:\n" + bullets(enriched.MissingInformation) + "\n\n")
		}
		if len(enriched.RelevantNodes) > 0 {
			nodes := enriched.RelevantNodes
			if len(nodes) > relevantNodeLimit {
				nodes = nodes[:relevantNodeLimit]
			}
			lines := make([]string, 0, len(nodes))
			for _, n := range nodes {
				reason := n.Reason
				if reason == "" {
					reason = "Relevant to query"
				}
				lines = append(lines, fmt.Sprintf("- %s (%s): %s [Score: %d%%]",
					n.ID, n.Type, reason, int(math.Round(n.Score()*100))))
			}
			b.WriteString("MOST RELEVANT NODES:\n" + strings.Join(lines, "\n") + "\n\n")
		}
	}

	b.WriteString("USER QUESTION: " + question)
	return b.String()
}

// QuickUserMessage is the model input for answers without enrichment or history.
func QuickUserMessage(question, contextString string) string {
	return "USER CONTEXT:\n" + contextString + "\n\nUSER QUESTION: " + question
}

func bullets(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}
