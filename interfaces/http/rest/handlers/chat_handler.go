package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/application/services"
	"github.com/mrsidrdx/context-graph-ai/domain/conversation"
	"github.com/mrsidrdx/context-graph-ai/domain/graph"
	"github.com/mrsidrdx/context-graph-ai/pkg/auth"
	"github.com/mrsidrdx/context-graph-ai/pkg/common"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
)

// ChatPipeline answers questions. services.AgentService implements it.
type ChatPipeline interface {
	ProcessQuestion(ctx context.Context, userID, question string, opts services.QuestionOptions) <-chan services.Event
	QuickResponse(ctx context.Context, userID, question string) (services.AgentResponse, error)
}

// Conversations manages stored conversations. services.ConversationService
// implements it.
type Conversations interface {
	List(ctx context.Context, userID string) ([]conversation.Summary, error)
	Create(ctx context.Context, userID, title string) (*conversation.Conversation, error)
	Get(ctx context.Context, conversationID, userID string) (*conversation.Conversation, error)
	Rename(ctx context.Context, conversationID, userID, title string) (*conversation.Conversation, error)
	Delete(ctx context.Context, conversationID, userID string) error
	AppendMessage(ctx context.Context, conversationID, userID string, msg conversation.Message) (conversation.Message, error)
}

// ChatHandler streams answers over server-sent events.
type ChatHandler struct {
	pipeline      ChatPipeline
	conversations Conversations
	errors        *errors.ErrorHandler
	logger        *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(pipeline ChatPipeline, conversations Conversations, errorHandler *errors.ErrorHandler, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		pipeline:      pipeline,
		conversations: conversations,
		errors:        errorHandler,
		logger:        logger,
	}
}

// ChatOptions tunes a single answer. IncludeVisualization is accepted for
// client compatibility; the context frame is always sent.
type ChatOptions struct {
	IncludeVisualization bool `json:"includeVisualization"`
	MaxContextDepth      int  `json:"maxContextDepth" validate:"omitempty,oneof=1 2 3"`
}

// ChatRequest represents the request body for POST /api/chat
type ChatRequest struct {
	Message        string       `json:"message" validate:"required,min=1,max=500"`
	ConversationID string       `json:"conversationId" validate:"required"`
	SessionID      string       `json:"sessionId,omitempty"`
	Options        *ChatOptions `json:"options,omitempty"`
}

// QuickRequest represents the request body for POST /api/chat/quick
type QuickRequest struct {
	Message string `json:"message" validate:"required,min=1,max=500"`
}

// Chat handles POST /api/chat. The conversation is checked and the question
// stored before any event is written; after that every outcome, including
// failures, is reported in-stream.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req ChatRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.errors.Handle(w, r, errors.NewValidationError("Invalid request body").WithCause(err))
		return
	}
	if err := validateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.errors.Handle(w, r, errors.NewInternalError("Streaming unsupported"))
		return
	}

	conv, err := h.conversations.Get(r.Context(), req.ConversationID, user.UserID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	history := services.HistoryFromMessages(conv.Messages)

	if _, err := h.conversations.AppendMessage(r.Context(), req.ConversationID, user.UserID, conversation.Message{
		Role:    conversation.RoleUser,
		Content: req.Message,
	}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	opts := services.QuestionOptions{History: history}
	if req.Options != nil {
		opts.Depth = graph.Depth(req.Options.MaxContextDepth)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	stream := &eventStream{w: w, flusher: flusher}
	if err := stream.send(map[string]interface{}{"conversationId": req.ConversationID}); err != nil {
		return
	}

	h.relay(r.Context(), stream, user.UserID, req, opts)
}

// relay forwards pipeline events as frames and stores the answer once the
// pipeline completes. It returns early when the client stops reading.
func (h *ChatHandler) relay(ctx context.Context, stream *eventStream, userID string, req ChatRequest, opts services.QuestionOptions) {
	var (
		answer   strings.Builder
		captured *graph.Context
		enriched *graph.EnrichedContext
	)

	for ev := range h.pipeline.ProcessQuestion(ctx, userID, req.Message, opts) {
		var frame map[string]interface{}

		switch ev.Type {
		case services.EventContext:
			captured = ev.Context
			frame = map[string]interface{}{"context": ev.Context}
		case services.EventEnriched:
			enriched = ev.Enriched
			frame = map[string]interface{}{"enrichedContext": ev.Enriched}
		case services.EventToken:
			answer.WriteString(ev.Token)
			frame = map[string]interface{}{"content": ev.Token}
		case services.EventDone:
			if ctx.Err() != nil {
				h.logger.Debug("Client left before the answer completed",
					zap.String("conversationId", req.ConversationID),
				)
				return
			}
			msg := conversation.Message{
				Role:            conversation.RoleAssistant,
				Content:         answer.String(),
				ContextGraph:    captured,
				EnrichedContext: enriched,
			}
			if captured != nil {
				used := conversation.ContextUsedFrom(*captured)
				msg.ContextUsed = &used
			}
			stored, err := h.conversations.AppendMessage(ctx, req.ConversationID, userID, msg)
			if err != nil {
				h.logger.Error("Failed to store answer",
					zap.String("conversationId", req.ConversationID),
					zap.String("userId", userID),
					zap.Error(err),
				)
				frame = map[string]interface{}{"error": clientMessage(err)}
				break
			}
			frame = map[string]interface{}{
				"done":           true,
				"messageId":      stored.ID,
				"conversationId": req.ConversationID,
				"tokensUsed":     ev.TokensUsed,
			}
		case services.EventError:
			frame = map[string]interface{}{"error": clientMessage(ev.Err)}
		default:
			continue
		}

		if err := stream.send(frame); err != nil {
			h.logger.Debug("Client stopped reading",
				zap.String("conversationId", req.ConversationID),
				zap.Error(err),
			)
			return
		}
	}
}

// Quick handles POST /api/chat/quick
func (h *ChatHandler) Quick(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req QuickRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.errors.Handle(w, r, errors.NewValidationError("Invalid request body").WithCause(err))
		return
	}
	if err := validateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	resp, err := h.pipeline.QuickResponse(r.Context(), user.UserID, req.Message)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, resp)
}

// clientMessage is the error text shown in an error frame.
func clientMessage(err error) string {
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr.Message
	}
	if err == nil {
		return "Unknown error"
	}
	return err.Error()
}

// eventStream writes "data: <json>\n\n" frames and flushes each one.
type eventStream struct {
	w       io.Writer
	flusher http.Flusher
}

func (s *eventStream) send(frame interface{}) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
