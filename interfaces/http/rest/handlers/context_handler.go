package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/domain/graph"
	"github.com/mrsidrdx/context-graph-ai/pkg/auth"
	"github.com/mrsidrdx/context-graph-ai/pkg/common"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
)

// UserContexts builds and invalidates graph contexts.
// services.ContextService implements it.
type UserContexts interface {
	GetUserContext(ctx context.Context, userID string, depth graph.Depth) (graph.Context, error)
	InvalidateUserContext(ctx context.Context, userID string)
}

// ContextHandler exposes a caller's own graph context.
type ContextHandler struct {
	contexts UserContexts
	errors   *errors.ErrorHandler
	logger   *zap.Logger
}

// NewContextHandler creates a new context handler
func NewContextHandler(contexts UserContexts, errorHandler *errors.ErrorHandler, logger *zap.Logger) *ContextHandler {
	return &ContextHandler{contexts: contexts, errors: errorHandler, logger: logger}
}

// GetContext handles GET /api/context/{userId}?depth=N. Unsupported depths
// fall back to the default.
func (h *ContextHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUserID(w, r)
	if !ok {
		return
	}

	depth := graph.DepthDefault
	if raw := r.URL.Query().Get("depth"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			depth = graph.Depth(n).OrDefault()
		}
	}

	gc, err := h.contexts.GetUserContext(r.Context(), userID, depth)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, gc)
}

// InvalidateContext handles DELETE /api/context/{userId}/cache
func (h *ContextHandler) InvalidateContext(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUserID(w, r)
	if !ok {
		return
	}

	h.contexts.InvalidateUserContext(r.Context(), userID)
	h.logger.Info("Context cache invalidated", zap.String("userId", userID))
	common.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ownUserID returns the path user id when it is the caller's.
func (h *ContextHandler) ownUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	userID := chi.URLParam(r, "userId")
	if userID != user.UserID {
		common.RespondError(w, http.StatusForbidden, "Forbidden")
		return "", false
	}
	return userID, true
}
