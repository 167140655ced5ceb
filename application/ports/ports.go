// Package ports declares the collaborators the application services depend on.
// Infrastructure packages provide the implementations; tests use the testify
// mocks in the mocks subpackage.
package ports

import (
	"context"
	"time"

	"github.com/mrsidrdx/context-graph-ai/domain/conversation"
	"github.com/mrsidrdx/context-graph-ai/domain/graph"
)

// GraphStore runs parameterised read traversals against the property graph.
type GraphStore interface {
	QueryContext(ctx context.Context, cypher string, params map[string]interface{}) ([]graph.RawResult, error)
}

// Cache is a best-effort byte cache with per-entry TTL. A TTL of zero or less
// stores the entry without expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GenerateRequest is a single-turn text generation request.
type GenerateRequest struct {
	SystemPrompt string
	UserMessage  string
	MaxTokens    int
}

// StreamChunk is one incremental text fragment of a streamed generation.
type StreamChunk struct {
	Content string
}

// TextGenerator produces model output. Stream sends fragments to out until the
// provider signals completion, then returns nil. It does not close out, and it
// stops sending as soon as ctx is done.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Stream(ctx context.Context, req GenerateRequest, out chan<- StreamChunk) error
}

// ConversationRepository persists conversations. Every operation is scoped by
// (conversationID, userID); a conversation owned by someone else is reported
// as not found.
type ConversationRepository interface {
	List(ctx context.Context, userID string, limit int) ([]conversation.Conversation, error)
	Create(ctx context.Context, conv conversation.Conversation) error
	Get(ctx context.Context, conversationID, userID string) (*conversation.Conversation, error)
	UpdateTitle(ctx context.Context, conversationID, userID, title string) (*conversation.Conversation, error)
	// SetDerivedTitle sets the title only if no title has been derived yet and
	// reports whether it did.
	SetDerivedTitle(ctx context.Context, conversationID, userID, title string) (bool, error)
	Delete(ctx context.Context, conversationID, userID string) error
	AppendMessage(ctx context.Context, conversationID, userID string, msg conversation.Message) (*conversation.Conversation, error)
}

// RateLimiter decides whether a keyed caller may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}
