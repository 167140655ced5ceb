// Package conversation holds the persisted chat history model.
package conversation

import (
	"time"
	"unicode/utf8"

	"github.com/mrsidrdx/context-graph-ai/domain/graph"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

const (
	// DefaultTitle is used until the first user message names the conversation.
	DefaultTitle = "New Conversation"

	titleLimit   = 50
	previewLimit = 100
)

// ContextUsed counts the context nodes an assistant answer was grounded on.
type ContextUsed struct {
	DocumentCount int `json:"documentCount"`
	TopicCount    int `json:"topicCount"`
	ProjectCount  int `json:"projectCount"`
}

// ContextUsedFrom counts documents, topics and projects in a context.
func ContextUsedFrom(c graph.Context) ContextUsed {
	return ContextUsed{
		DocumentCount: c.CountKind(graph.KindDocument),
		TopicCount:    c.CountKind(graph.KindTopic),
		ProjectCount:  c.CountKind(graph.KindProject),
	}
}

// Message is one turn of a conversation. Messages are append-only.
type Message struct {
	ID              string                 `json:"id"`
	Role            Role                   `json:"role"`
	Content         string                 `json:"content"`
	Timestamp       time.Time              `json:"timestamp"`
	ContextUsed     *ContextUsed           `json:"contextUsed,omitempty"`
	ContextGraph    *graph.Context         `json:"contextGraph,omitempty"`
	EnrichedContext *graph.EnrichedContext `json:"enrichedContext,omitempty"`
}

// Conversation is a user-owned, ordered sequence of messages.
type Conversation struct {
	ConversationID string    `json:"id"`
	UserID         string    `json:"-"`
	Title          string    `json:"title"`
	TitleDerived   bool      `json:"-"`
	Messages       []Message `json:"messages"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Summary is the list view of a conversation.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
	Preview      string    `json:"preview"`
}

// Summarize builds the list view, previewing the first message.
func (c Conversation) Summarize() Summary {
	s := Summary{
		ID:           c.ConversationID,
		Title:        c.Title,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
	}
	if len(c.Messages) > 0 {
		s.Preview = truncateRunes(c.Messages[0].Content, previewLimit)
	}
	return s
}

// DeriveTitle names a conversation after its first user message: the first
// 50 characters, with an ellipsis when the message is longer.
func DeriveTitle(content string) string {
	if utf8.RuneCountInString(content) <= titleLimit {
		return content
	}
	return truncateRunes(content, titleLimit) + "..."
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
