// Package mocks provides testify mocks of the application ports.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mrsidrdx/context-graph-ai/application/ports"
	"github.com/mrsidrdx/context-graph-ai/domain/conversation"
	"github.com/mrsidrdx/context-graph-ai/domain/graph"
)

// GraphStore mocks ports.GraphStore.
type GraphStore struct {
	mock.Mock
}

func (m *GraphStore) QueryContext(ctx context.Context, cypher string, params map[string]interface{}) ([]graph.RawResult, error) {
	args := m.Called(ctx, cypher, params)
	results, _ := args.Get(0).([]graph.RawResult)
	return results, args.Error(1)
}

// Cache mocks ports.Cache.
type Cache struct {
	mock.Mock
}

func (m *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	value, _ := args.Get(0).([]byte)
	return value, args.Bool(1), args.Error(2)
}

func (m *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *Cache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// TextGenerator mocks ports.TextGenerator. Stream sends the configured
// Chunks before returning the mocked error, honouring ctx while sending.
type TextGenerator struct {
	mock.Mock
	Chunks []string
}

func (m *TextGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *TextGenerator) Stream(ctx context.Context, req ports.GenerateRequest, out chan<- ports.StreamChunk) error {
	args := m.Called(ctx, req)
	for _, c := range m.Chunks {
		select {
		case out <- ports.StreamChunk{Content: c}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return args.Error(0)
}

// ConversationRepository mocks ports.ConversationRepository.
type ConversationRepository struct {
	mock.Mock
}

func (m *ConversationRepository) List(ctx context.Context, userID string, limit int) ([]conversation.Conversation, error) {
	args := m.Called(ctx, userID, limit)
	convs, _ := args.Get(0).([]conversation.Conversation)
	return convs, args.Error(1)
}

func (m *ConversationRepository) Create(ctx context.Context, conv conversation.Conversation) error {
	return m.Called(ctx, conv).Error(0)
}

func (m *ConversationRepository) Get(ctx context.Context, conversationID, userID string) (*conversation.Conversation, error) {
	args := m.Called(ctx, conversationID, userID)
	conv, _ := args.Get(0).(*conversation.Conversation)
	return conv, args.Error(1)
}

func (m *ConversationRepository) UpdateTitle(ctx context.Context, conversationID, userID, title string) (*conversation.Conversation, error) {
	args := m.Called(ctx, conversationID, userID, title)
	conv, _ := args.Get(0).(*conversation.Conversation)
	return conv, args.Error(1)
}

func (m *ConversationRepository) SetDerivedTitle(ctx context.Context, conversationID, userID, title string) (bool, error) {
	args := m.Called(ctx, conversationID, userID, title)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepository) Delete(ctx context.Context, conversationID, userID string) error {
	return m.Called(ctx, conversationID, userID).Error(0)
}

func (m *ConversationRepository) AppendMessage(ctx context.Context, conversationID, userID string, msg conversation.Message) (*conversation.Conversation, error) {
	args := m.Called(ctx, conversationID, userID, msg)
	conv, _ := args.Get(0).(*conversation.Conversation)
	return conv, args.Error(1)
}

// RateLimiter mocks ports.RateLimiter.
type RateLimiter struct {
	mock.Mock
}

func (m *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *RateLimiter) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
