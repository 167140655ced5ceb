package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/application/services"
	"github.com/mrsidrdx/context-graph-ai/domain/conversation"
	"github.com/mrsidrdx/context-graph-ai/domain/graph"
	"github.com/mrsidrdx/context-graph-ai/pkg/auth"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
)

type mockConversations struct {
	mock.Mock
}

func (m *mockConversations) List(ctx context.Context, userID string) ([]conversation.Summary, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]conversation.Summary)
	return list, args.Error(1)
}

func (m *mockConversations) Create(ctx context.Context, userID, title string) (*conversation.Conversation, error) {
	args := m.Called(ctx, userID, title)
	conv, _ := args.Get(0).(*conversation.Conversation)
	return conv, args.Error(1)
}

func (m *mockConversations) Get(ctx context.Context, conversationID, userID string) (*conversation.Conversation, error) {
	args := m.Called(ctx, conversationID, userID)
	conv, _ := args.Get(0).(*conversation.Conversation)
	return conv, args.Error(1)
}

func (m *mockConversations) Rename(ctx context.Context, conversationID, userID, title string) (*conversation.Conversation, error) {
	args := m.Called(ctx, conversationID, userID, title)
	conv, _ := args.Get(0).(*conversation.Conversation)
	return conv, args.Error(1)
}

func (m *mockConversations) Delete(ctx context.Context, conversationID, userID string) error {
	return m.Called(ctx, conversationID, userID).Error(0)
}

func (m *mockConversations) AppendMessage(ctx context.Context, conversationID, userID string, msg conversation.Message) (conversation.Message, error) {
	args := m.Called(ctx, conversationID, userID, msg)
	stored, _ := args.Get(0).(conversation.Message)
	return stored, args.Error(1)
}

// fakePipeline replays a fixed event sequence and records its inputs.
type fakePipeline struct {
	events   []services.Event
	quick    services.AgentResponse
	quickErr error

	userID   string
	question string
	opts     services.QuestionOptions
}

func (p *fakePipeline) ProcessQuestion(ctx context.Context, userID, question string, opts services.QuestionOptions) <-chan services.Event {
	p.userID, p.question, p.opts = userID, question, opts
	out := make(chan services.Event, len(p.events))
	for _, ev := range p.events {
		out <- ev
	}
	close(out)
	return out
}

func (p *fakePipeline) QuickResponse(ctx context.Context, userID, question string) (services.AgentResponse, error) {
	p.userID, p.question = userID, question
	return p.quick, p.quickErr
}

// stallingPipeline emits a context and a token, waits for the caller to go
// away and then still offers a done event.
type stallingPipeline struct {
	fakePipeline
	stopped chan struct{}
}

func (p *stallingPipeline) ProcessQuestion(ctx context.Context, userID, question string, opts services.QuestionOptions) <-chan services.Event {
	out := make(chan services.Event, 3)
	go func() {
		defer close(out)
		out <- services.Event{Type: services.EventContext, Context: sampleContext()}
		out <- services.Event{Type: services.EventToken, Token: "partial"}
		<-ctx.Done()
		close(p.stopped)
		out <- services.Event{Type: services.EventDone, TokensUsed: 2}
	}()
	return out
}

// cancelOnContent cancels the request once a content frame is written.
type cancelOnContent struct {
	*httptest.ResponseRecorder
	cancel context.CancelFunc
}

func (w *cancelOnContent) Write(b []byte) (int, error) {
	n, err := w.ResponseRecorder.Write(b)
	if strings.Contains(string(b), `"content"`) {
		w.cancel()
	}
	return n, err
}

func route(method, pattern string, h http.HandlerFunc, userID string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != "" {
				req = req.WithContext(auth.SetUserInContext(req.Context(), &auth.UserContext{UserID: userID}))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.MethodFunc(method, pattern, h)
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func frames(t *testing.T, body string) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, block := range strings.Split(body, "\n\n") {
		if block == "" {
			continue
		}
		require.True(t, strings.HasPrefix(block, "data: "), "frame %q", block)
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(block, "data: ")), &frame))
		out = append(out, frame)
	}
	return out
}

func errorHandler() *errors.ErrorHandler {
	return errors.NewErrorHandler(zap.NewNop(), false)
}

func sampleContext() *graph.Context {
	return &graph.Context{
		Nodes: []graph.Node{
			{ID: "u1", Type: graph.KindUser, Properties: map[string]interface{}{}},
			{ID: "d1", Type: graph.KindDocument, Properties: map[string]interface{}{}},
			{ID: "t1", Type: graph.KindTopic, Properties: map[string]interface{}{}},
			{ID: "t2", Type: graph.KindTopic, Properties: map[string]interface{}{}},
		},
		Relationships: []graph.Relationship{},
	}
}

func TestChatHandler(t *testing.T) {
	t.Run("Should reject invalid requests before touching storage", func(t *testing.T) {
		convs := new(mockConversations)
		h := NewChatHandler(&fakePipeline{}, convs, errorHandler(), zap.NewNop())
		srv := route(http.MethodPost, "/api/chat", h.Chat, "u1")

		for _, body := range []string{
			`{"message":"","conversationId":"c1"}`,
			`{"message":"` + strings.Repeat("x", 501) + `","conversationId":"c1"}`,
			`{"message":"hi"}`,
			`{"message":"hi","conversationId":"c1","options":{"maxContextDepth":4}}`,
			`not json`,
		} {
			w := do(srv, http.MethodPost, "/api/chat", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
		convs.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should list the rejected fields", func(t *testing.T) {
		h := NewChatHandler(&fakePipeline{}, new(mockConversations), errorHandler(), zap.NewNop())
		w := do(route(http.MethodPost, "/api/chat", h.Chat, "u1"), http.MethodPost, "/api/chat", `{"message":""}`)

		body := decodeBody(t, w)
		assert.Equal(t, "Validation failed", body["error"])
		issues := body["details"].(map[string]interface{})["issues"].([]interface{})
		fields := make([]string, 0, len(issues))
		for _, i := range issues {
			fields = append(fields, i.(map[string]interface{})["field"].(string))
		}
		assert.ElementsMatch(t, []string{"message", "conversationId"}, fields)
	})

	t.Run("Should answer 404 for a conversation the caller does not own", func(t *testing.T) {
		convs := new(mockConversations)
		convs.On("Get", mock.Anything, "c1", "u1").Return(nil, errors.NewNotFoundError("Conversation"))
		h := NewChatHandler(&fakePipeline{}, convs, errorHandler(), zap.NewNop())

		w := do(route(http.MethodPost, "/api/chat", h.Chat, "u1"), http.MethodPost, "/api/chat",
			`{"message":"hi","conversationId":"c1"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Conversation not found", decodeBody(t, w)["error"])
		convs.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should stream frames and store the answer", func(t *testing.T) {
		gc := sampleContext()
		pipeline := &fakePipeline{events: []services.Event{
			{Type: services.EventContext, Context: gc},
			{Type: services.EventEnriched, Enriched: &graph.EnrichedContext{KeyInsights: []string{"likes Go"}}},
			{Type: services.EventToken, Token: "Hello "},
			{Type: services.EventToken, Token: "world"},
			{Type: services.EventDone, TokensUsed: 3},
		}}
		prior := conversation.Message{ID: "m0", Role: conversation.RoleAssistant, Content: "earlier"}

		convs := new(mockConversations)
		convs.On("Get", mock.Anything, "c1", "u1").
			Return(&conversation.Conversation{ConversationID: "c1", UserID: "u1", Messages: []conversation.Message{prior}}, nil)
		convs.On("AppendMessage", mock.Anything, "c1", "u1", mock.MatchedBy(func(m conversation.Message) bool {
			return m.Role == conversation.RoleUser
		})).Return(conversation.Message{ID: "m1"}, nil).Once()
		convs.On("AppendMessage", mock.Anything, "c1", "u1", mock.MatchedBy(func(m conversation.Message) bool {
			return m.Role == conversation.RoleAssistant &&
				m.Content == "Hello world" &&
				m.ContextGraph == gc &&
				m.EnrichedContext != nil &&
				m.ContextUsed != nil &&
				*m.ContextUsed == conversation.ContextUsed{DocumentCount: 1, TopicCount: 2}
		})).Return(conversation.Message{ID: "m2"}, nil).Once()

		h := NewChatHandler(pipeline, convs, errorHandler(), zap.NewNop())
		w := do(route(http.MethodPost, "/api/chat", h.Chat, "u1"), http.MethodPost, "/api/chat",
			`{"message":"What next?","conversationId":"c1","options":{"maxContextDepth":3}}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
		assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

		got := frames(t, w.Body.String())
		require.Len(t, got, 6)
		assert.Equal(t, map[string]interface{}{"conversationId": "c1"}, got[0])
		assert.Contains(t, got[1], "context")
		assert.Contains(t, got[2], "enrichedContext")
		assert.Equal(t, "Hello ", got[3]["content"])
		assert.Equal(t, "world", got[4]["content"])
		assert.Equal(t, map[string]interface{}{
			"done":           true,
			"messageId":      "m2",
			"conversationId": "c1",
			"tokensUsed":     float64(3),
		}, got[5])

		assert.Equal(t, "u1", pipeline.userID)
		assert.Equal(t, "What next?", pipeline.question)
		assert.Equal(t, graph.DepthExtended, pipeline.opts.Depth)
		assert.Equal(t, []services.HistoryTurn{{Role: conversation.RoleAssistant, Content: "earlier"}}, pipeline.opts.History)
		convs.AssertExpectations(t)
	})

	t.Run("Should store only the question when the client leaves mid-answer", func(t *testing.T) {
		pipeline := &stallingPipeline{stopped: make(chan struct{})}
		convs := new(mockConversations)
		convs.On("Get", mock.Anything, "c1", "u1").Return(&conversation.Conversation{ConversationID: "c1"}, nil)
		convs.On("AppendMessage", mock.Anything, "c1", "u1", mock.MatchedBy(func(m conversation.Message) bool {
			return m.Role == conversation.RoleUser
		})).Return(conversation.Message{ID: "m1"}, nil).Once()

		h := NewChatHandler(pipeline, convs, errorHandler(), zap.NewNop())
		srv := route(http.MethodPost, "/api/chat", h.Chat, "u1")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		req := httptest.NewRequest(http.MethodPost, "/api/chat",
			strings.NewReader(`{"message":"hi","conversationId":"c1"}`)).WithContext(ctx)
		req.Header.Set("Content-Type", "application/json")
		w := &cancelOnContent{ResponseRecorder: httptest.NewRecorder(), cancel: cancel}

		srv.ServeHTTP(w, req)

		select {
		case <-pipeline.stopped:
		case <-time.After(5 * time.Second):
			t.Fatal("pipeline did not observe the cancellation")
		}
		for _, frame := range frames(t, w.Body.String()) {
			assert.NotContains(t, frame, "done")
		}
		convs.AssertNumberOfCalls(t, "AppendMessage", 1)
		convs.AssertExpectations(t)
	})

	t.Run("Should report a failed run in-stream and store no answer", func(t *testing.T) {
		pipeline := &fakePipeline{events: []services.Event{
			{Type: services.EventContext, Context: sampleContext()},
			{Type: services.EventToken, Token: "partial"},
			{Type: services.EventError, Err: errors.NewExternalError("anthropic", errors.New("reset"))},
		}}
		convs := new(mockConversations)
		convs.On("Get", mock.Anything, "c1", "u1").Return(&conversation.Conversation{ConversationID: "c1"}, nil)
		convs.On("AppendMessage", mock.Anything, "c1", "u1", mock.Anything).Return(conversation.Message{ID: "m1"}, nil).Once()

		h := NewChatHandler(pipeline, convs, errorHandler(), zap.NewNop())
		w := do(route(http.MethodPost, "/api/chat", h.Chat, "u1"), http.MethodPost, "/api/chat",
			`{"message":"hi","conversationId":"c1"}`)

		got := frames(t, w.Body.String())
		require.Len(t, got, 4)
		assert.Equal(t, map[string]interface{}{"error": "external service 'anthropic' error"}, got[3])
		for _, f := range got {
			assert.NotContains(t, f, "done")
		}
		convs.AssertNumberOfCalls(t, "AppendMessage", 1)
		assert.Equal(t, graph.Depth(0), pipeline.opts.Depth)
	})

	t.Run("Should report a failed save instead of done", func(t *testing.T) {
		pipeline := &fakePipeline{events: []services.Event{
			{Type: services.EventContext, Context: sampleContext()},
			{Type: services.EventToken, Token: "answer"},
			{Type: services.EventDone, TokensUsed: 2},
		}}
		convs := new(mockConversations)
		convs.On("Get", mock.Anything, "c1", "u1").Return(&conversation.Conversation{ConversationID: "c1"}, nil)
		convs.On("AppendMessage", mock.Anything, "c1", "u1", mock.MatchedBy(func(m conversation.Message) bool {
			return m.Role == conversation.RoleUser
		})).Return(conversation.Message{ID: "m1"}, nil)
		convs.On("AppendMessage", mock.Anything, "c1", "u1", mock.MatchedBy(func(m conversation.Message) bool {
			return m.Role == conversation.RoleAssistant
		})).Return(conversation.Message{}, errors.NewDatabaseError("append message", errors.New("timeout")))

		h := NewChatHandler(pipeline, convs, errorHandler(), zap.NewNop())
		w := do(route(http.MethodPost, "/api/chat", h.Chat, "u1"), http.MethodPost, "/api/chat",
			`{"message":"hi","conversationId":"c1"}`)

		got := frames(t, w.Body.String())
		require.NotEmpty(t, got)
		last := got[len(got)-1]
		assert.Equal(t, "database operation 'append message' failed", last["error"])
		assert.NotContains(t, last, "done")
	})

	t.Run("Should answer quick questions as JSON", func(t *testing.T) {
		pipeline := &fakePipeline{quick: services.AgentResponse{Content: "Read more.", Context: *sampleContext()}}
		h := NewChatHandler(pipeline, new(mockConversations), errorHandler(), zap.NewNop())

		w := do(route(http.MethodPost, "/api/chat/quick", h.Quick, "u1"), http.MethodPost, "/api/chat/quick",
			`{"message":"What now?"}`)

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "Read more.", body["content"])
		assert.Len(t, body["context"].(map[string]interface{})["nodes"], 4)
		assert.Equal(t, "What now?", pipeline.question)
	})

	t.Run("Should map quick answer failures to their status", func(t *testing.T) {
		pipeline := &fakePipeline{quickErr: errors.NewConfigurationError("ANTHROPIC_API_KEY")}
		h := NewChatHandler(pipeline, new(mockConversations), errorHandler(), zap.NewNop())

		w := do(route(http.MethodPost, "/api/chat/quick", h.Quick, "u1"), http.MethodPost, "/api/chat/quick",
			`{"message":"What now?"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "ANTHROPIC_API_KEY not configured", decodeBody(t, w)["error"])
	})
}

func TestConversationHandler(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Should list summaries", func(t *testing.T) {
		convs := new(mockConversations)
		convs.On("List", mock.Anything, "u1").Return([]conversation.Summary{
			{ID: "c1", Title: "First", UpdatedAt: created, MessageCount: 2, Preview: "hello"},
		}, nil)
		h := NewConversationHandler(convs, errorHandler(), zap.NewNop())

		w := do(route(http.MethodGet, "/api/conversations", h.ListConversations, "u1"), http.MethodGet, "/api/conversations", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"conversations":[{"id":"c1","title":"First","updatedAt":"2024-03-01T12:00:00Z","messageCount":2,"preview":"hello"}]}`, w.Body.String())
	})

	t.Run("Should create with or without a body", func(t *testing.T) {
		convs := new(mockConversations)
		convs.On("Create", mock.Anything, "u1", "").
			Return(&conversation.Conversation{ConversationID: "c1", Title: conversation.DefaultTitle, CreatedAt: created}, nil)
		convs.On("Create", mock.Anything, "u1", "Plans").
			Return(&conversation.Conversation{ConversationID: "c2", Title: "Plans", CreatedAt: created}, nil)
		h := NewConversationHandler(convs, errorHandler(), zap.NewNop())
		srv := route(http.MethodPost, "/api/conversations", h.CreateConversation, "u1")

		w := do(srv, http.MethodPost, "/api/conversations", "")
		require.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"id":"c1","title":"New Conversation","createdAt":"2024-03-01T12:00:00Z"}`, w.Body.String())

		w = do(srv, http.MethodPost, "/api/conversations", `{"title":"Plans"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "Plans", decodeBody(t, w)["title"])
	})

	t.Run("Should return a conversation with its messages", func(t *testing.T) {
		convs := new(mockConversations)
		convs.On("Get", mock.Anything, "c1", "u1").Return(&conversation.Conversation{
			ConversationID: "c1", UserID: "u1", Title: "T", CreatedAt: created, UpdatedAt: created,
		}, nil)
		h := NewConversationHandler(convs, errorHandler(), zap.NewNop())

		w := do(route(http.MethodGet, "/api/conversations/{id}", h.GetConversation, "u1"), http.MethodGet, "/api/conversations/c1", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":"c1","title":"T","messages":[],"createdAt":"2024-03-01T12:00:00Z","updatedAt":"2024-03-01T12:00:00Z"}`, w.Body.String())
	})

	t.Run("Should answer 404 across users", func(t *testing.T) {
		convs := new(mockConversations)
		convs.On("Get", mock.Anything, "c1", "bob").Return(nil, errors.NewNotFoundError("Conversation"))
		convs.On("Delete", mock.Anything, "c1", "bob").Return(errors.NewNotFoundError("Conversation"))
		h := NewConversationHandler(convs, errorHandler(), zap.NewNop())

		w := do(route(http.MethodGet, "/api/conversations/{id}", h.GetConversation, "bob"), http.MethodGet, "/api/conversations/c1", "")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = do(route(http.MethodDelete, "/api/conversations/{id}", h.DeleteConversation, "bob"), http.MethodDelete, "/api/conversations/c1", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Conversation not found", decodeBody(t, w)["error"])
	})

	t.Run("Should rename", func(t *testing.T) {
		convs := new(mockConversations)
		convs.On("Rename", mock.Anything, "c1", "u1", "Renamed").
			Return(&conversation.Conversation{ConversationID: "c1", Title: "Renamed"}, nil)
		h := NewConversationHandler(convs, errorHandler(), zap.NewNop())
		srv := route(http.MethodPatch, "/api/conversations/{id}", h.UpdateConversation, "u1")

		w := do(srv, http.MethodPatch, "/api/conversations/c1", `{"title":"Renamed"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":"c1","title":"Renamed"}`, w.Body.String())

		w = do(srv, http.MethodPatch, "/api/conversations/c1", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Should delete", func(t *testing.T) {
		convs := new(mockConversations)
		convs.On("Delete", mock.Anything, "c1", "u1").Return(nil)
		h := NewConversationHandler(convs, errorHandler(), zap.NewNop())

		w := do(route(http.MethodDelete, "/api/conversations/{id}", h.DeleteConversation, "u1"), http.MethodDelete, "/api/conversations/c1", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
	})

	t.Run("Should append a message", func(t *testing.T) {
		convs := new(mockConversations)
		convs.On("AppendMessage", mock.Anything, "c1", "u1", conversation.Message{Role: conversation.RoleUser, Content: "hi"}).
			Return(conversation.Message{ID: "m1", Role: conversation.RoleUser, Content: "hi", Timestamp: created}, nil)
		h := NewConversationHandler(convs, errorHandler(), zap.NewNop())
		srv := route(http.MethodPost, "/api/conversations/{id}/messages", h.AddMessage, "u1")

		w := do(srv, http.MethodPost, "/api/conversations/c1/messages", `{"role":"user","content":"hi"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"message":{"id":"m1","role":"user","content":"hi","timestamp":"2024-03-01T12:00:00Z"}}`, w.Body.String())

		for _, body := range []string{`{"role":"user"}`, `{"content":"hi"}`, `{"role":"system","content":"hi"}`} {
			w = do(srv, http.MethodPost, "/api/conversations/c1/messages", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
	})

	t.Run("Should refuse anonymous callers", func(t *testing.T) {
		h := NewConversationHandler(new(mockConversations), errorHandler(), zap.NewNop())

		w := do(route(http.MethodGet, "/api/conversations", h.ListConversations, ""), http.MethodGet, "/api/conversations", "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

type fakeContexts struct {
	depth       graph.Depth
	invalidated string
	err         error
}

func (f *fakeContexts) GetUserContext(ctx context.Context, userID string, depth graph.Depth) (graph.Context, error) {
	f.depth = depth
	if f.err != nil {
		return graph.Context{}, f.err
	}
	return *sampleContext(), nil
}

func (f *fakeContexts) InvalidateUserContext(ctx context.Context, userID string) {
	f.invalidated = userID
}

func TestContextHandler(t *testing.T) {
	t.Run("Should forbid reading another user's context", func(t *testing.T) {
		contexts := &fakeContexts{}
		h := NewContextHandler(contexts, errorHandler(), zap.NewNop())

		w := do(route(http.MethodGet, "/api/context/{userId}", h.GetContext, "u1"), http.MethodGet, "/api/context/u2", "")

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, `{"error":"Forbidden"}`, w.Body.String())
		assert.Equal(t, graph.Depth(0), contexts.depth)
	})

	depths := map[string]graph.Depth{
		"":         graph.DepthDefault,
		"?depth=1": graph.DepthShallow,
		"?depth=3": graph.DepthExtended,
		"?depth=7": graph.DepthDefault,
		"?depth=x": graph.DepthDefault,
	}
	for query, want := range depths {
		t.Run("Should resolve depth for "+query, func(t *testing.T) {
			contexts := &fakeContexts{}
			h := NewContextHandler(contexts, errorHandler(), zap.NewNop())

			w := do(route(http.MethodGet, "/api/context/{userId}", h.GetContext, "u1"), http.MethodGet, "/api/context/u1"+query, "")

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, want, contexts.depth)
			assert.Len(t, decodeBody(t, w)["nodes"], 4)
		})
	}

	t.Run("Should map graph failures", func(t *testing.T) {
		contexts := &fakeContexts{err: errors.NewGraphQueryError("context", errors.New("down"))}
		h := NewContextHandler(contexts, errorHandler(), zap.NewNop())

		w := do(route(http.MethodGet, "/api/context/{userId}", h.GetContext, "u1"), http.MethodGet, "/api/context/u1", "")

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("Should invalidate the caller's cache", func(t *testing.T) {
		contexts := &fakeContexts{}
		h := NewContextHandler(contexts, errorHandler(), zap.NewNop())

		w := do(route(http.MethodDelete, "/api/context/{userId}/cache", h.InvalidateContext, "u1"), http.MethodDelete, "/api/context/u1/cache", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u1", contexts.invalidated)
	})
}

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }

	t.Run("Should report ready when every dependency answers", func(t *testing.T) {
		h := NewHealthHandler([]DependencyCheck{{Name: "neo4j", Ping: ok}, {Name: "mongo", Ping: ok}}, zap.NewNop())

		w := httptest.NewRecorder()
		h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ready","checks":{"neo4j":"ok","mongo":"ok"}}`, w.Body.String())
	})

	t.Run("Should report the failing dependency", func(t *testing.T) {
		down := func(context.Context) error { return errors.New("connection refused") }
		h := NewHealthHandler([]DependencyCheck{{Name: "neo4j", Ping: ok}, {Name: "redis", Ping: down}}, zap.NewNop())

		w := httptest.NewRecorder()
		h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"not ready","checks":{"neo4j":"ok","redis":"connection refused"}}`, w.Body.String())
	})

	t.Run("Should report liveness", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(nil, zap.NewNop()).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
	})
}
