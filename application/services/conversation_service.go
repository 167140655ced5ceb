package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/application/ports"
	"github.com/mrsidrdx/context-graph-ai/domain/conversation"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
)

// ConversationListLimit caps the conversation list.
const ConversationListLimit = 50

// ConversationService manages a user's conversations. Every operation is
// scoped to the calling user; other users' conversations are not found.
type ConversationService struct {
	repo   ports.ConversationRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewConversationService creates a new conversation service
func NewConversationService(repo ports.ConversationRepository, logger *zap.Logger) *ConversationService {
	return &ConversationService{repo: repo, logger: logger, now: time.Now}
}

// List returns summaries of the user's most recently updated conversations.
func (s *ConversationService) List(ctx context.Context, userID string) ([]conversation.Summary, error) {
	convs, err := s.repo.List(ctx, userID, ConversationListLimit)
	if err != nil {
		return nil, err
	}
	out := make([]conversation.Summary, 0, len(convs))
	for _, c := range convs {
		out = append(out, c.Summarize())
	}
	return out, nil
}

// Create starts an empty conversation. A blank title becomes the default.
func (s *ConversationService) Create(ctx context.Context, userID, title string) (*conversation.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = conversation.DefaultTitle
	}
	now := s.now().UTC()
	conv := conversation.Conversation{
		ConversationID: uuid.NewString(),
		UserID:         userID,
		Title:          title,
		Messages:       []conversation.Message{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Info("conversation created",
		zap.String("conversationId", conv.ConversationID),
		zap.String("userId", userID),
	)
	return &conv, nil
}

// Get loads one conversation with its messages.
func (s *ConversationService) Get(ctx context.Context, conversationID, userID string) (*conversation.Conversation, error) {
	return s.repo.Get(ctx, conversationID, userID)
}

// Rename sets an explicit title. Later messages never replace it.
func (s *ConversationService) Rename(ctx context.Context, conversationID, userID, title string) (*conversation.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.NewValidationError("title is required")
	}
	return s.repo.UpdateTitle(ctx, conversationID, userID, title)
}

// Delete removes a conversation.
func (s *ConversationService) Delete(ctx context.Context, conversationID, userID string) error {
	return s.repo.Delete(ctx, conversationID, userID)
}

// AppendMessage stores msg, assigning its id and timestamp when unset. The
// first user message names a conversation that has no title of its own yet.
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID, userID string, msg conversation.Message) (conversation.Message, error) {
	if !msg.Role.Valid() {
		return conversation.Message{}, errors.NewValidationError("role must be 'user' or 'assistant'")
	}
	if msg.Content == "" {
		return conversation.Message{}, errors.NewValidationError("content is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}

	conv, err := s.repo.AppendMessage(ctx, conversationID, userID, msg)
	if err != nil {
		return conversation.Message{}, err
	}

	if msg.Role == conversation.RoleUser && !conv.TitleDerived {
		title := conversation.DeriveTitle(msg.Content)
		set, err := s.repo.SetDerivedTitle(ctx, conversationID, userID, title)
		if err != nil {
			// The message is stored; a missing title is not worth failing for.
			s.logger.Warn("deriving conversation title failed",
				zap.String("conversationId", conversationID),
				zap.Error(err),
			)
		} else if set {
			s.logger.Debug("conversation titled",
				zap.String("conversationId", conversationID),
				zap.String("title", title),
			)
		}
	}
	return msg, nil
}
