package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/domain/conversation"
	"github.com/mrsidrdx/context-graph-ai/pkg/auth"
	"github.com/mrsidrdx/context-graph-ai/pkg/common"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
)

// ConversationHandler handles conversation-related HTTP requests
type ConversationHandler struct {
	conversations Conversations
	errors        *errors.ErrorHandler
	logger        *zap.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversations Conversations, errorHandler *errors.ErrorHandler, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		errors:        errorHandler,
		logger:        logger,
	}
}

// CreateConversationRequest represents the request body for creating a conversation
type CreateConversationRequest struct {
	Title string `json:"title,omitempty" validate:"max=200"`
}

// CreateConversationResponse represents the response for creating a conversation
type CreateConversationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// UpdateConversationRequest represents the request body for renaming a conversation
type UpdateConversationRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// AddMessageRequest represents the request body for appending a message
type AddMessageRequest struct {
	Role        string                    `json:"role" validate:"required,oneof=user assistant"`
	Content     string                    `json:"content" validate:"required"`
	ContextUsed *conversation.ContextUsed `json:"contextUsed,omitempty"`
}

// ListConversations handles GET /api/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	summaries, err := h.conversations.List(r.Context(), user.UserID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"conversations": summaries})
}

// CreateConversation handles POST /api/conversations. The body is optional.
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	var req CreateConversationRequest
	if err := common.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.errors.Handle(w, r, errors.NewValidationError("Invalid request body").WithCause(err))
		return
	}
	if err := validateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	conv, err := h.conversations.Create(r.Context(), user.UserID, req.Title)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, CreateConversationResponse{
		ID:        conv.ConversationID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
	})
}

// GetConversation handles GET /api/conversations/{id}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	conv, err := h.conversations.Get(r.Context(), chi.URLParam(r, "id"), user.UserID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if conv.Messages == nil {
		conv.Messages = []conversation.Message{}
	}
	common.RespondJSON(w, http.StatusOK, conv)
}

// UpdateConversation handles PATCH /api/conversations/{id}
func (h *ConversationHandler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	var req UpdateConversationRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.errors.Handle(w, r, errors.NewValidationError("Invalid request body").WithCause(err))
		return
	}
	if err := validateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	conv, err := h.conversations.Rename(r.Context(), chi.URLParam(r, "id"), user.UserID, req.Title)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{
		"id":    conv.ConversationID,
		"title": conv.Title,
	})
}

// DeleteConversation handles DELETE /api/conversations/{id}
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	if err := h.conversations.Delete(r.Context(), chi.URLParam(r, "id"), user.UserID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// AddMessage handles POST /api/conversations/{id}/messages
func (h *ConversationHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	var req AddMessageRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.errors.Handle(w, r, errors.NewValidationError("Invalid request body").WithCause(err))
		return
	}
	if err := validateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	msg, err := h.conversations.AppendMessage(r.Context(), chi.URLParam(r, "id"), user.UserID, conversation.Message{
		Role:        conversation.Role(req.Role),
		Content:     req.Content,
		ContextUsed: req.ContextUsed,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, map[string]interface{}{"message": msg})
}

func (h *ConversationHandler) user(w http.ResponseWriter, r *http.Request) (*auth.UserContext, bool) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return user, true
}
