package services

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/application/ports"
	"github.com/mrsidrdx/context-graph-ai/domain/graph"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
	"github.com/mrsidrdx/context-graph-ai/pkg/observability"
)

// EventType tags pipeline events.
type EventType string

const (
	EventContext  EventType = "context"
	EventEnriched EventType = "enriched"
	EventToken    EventType = "token"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Event is one step of an answer. Exactly one payload field is set,
// according to Type.
type Event struct {
	Type       EventType
	Context    *graph.Context
	Enriched   *graph.EnrichedContext
	Token      string
	TokensUsed int
	Err        error
}

// QuestionOptions tunes a single pipeline run.
type QuestionOptions struct {
	Depth   graph.Depth
	History []HistoryTurn
}

// AgentConfig tunes the streaming engine.
type AgentConfig struct {
	DefaultDepth  graph.Depth
	MaxTokens     int
	HistoryTurns  int
	StreamTimeout time.Duration
	EventBuffer   int
}

// AgentResponse is a fully collected answer.
type AgentResponse struct {
	Content string        `json:"content"`
	Context graph.Context `json:"context"`
}

// AgentService answers questions against a user's graph context.
type AgentService struct {
	contexts  *ContextService
	enricher  *Enricher
	generator ports.TextGenerator
	config    AgentConfig
	metrics   *observability.Collector
	logger    *zap.Logger
}

// NewAgentService creates a new agent service
func NewAgentService(
	contexts *ContextService,
	enricher *Enricher,
	generator ports.TextGenerator,
	config AgentConfig,
	metrics *observability.Collector,
	logger *zap.Logger,
) *AgentService {
	config.DefaultDepth = config.DefaultDepth.OrDefault()
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}
	if config.HistoryTurns <= 0 {
		config.HistoryTurns = DefaultHistoryTurns
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 32
	}
	return &AgentService{
		contexts:  contexts,
		enricher:  enricher,
		generator: generator,
		config:    config,
		metrics:   metrics,
		logger:    logger,
	}
}

// ProcessQuestion runs the pipeline in its own goroutine and returns its
// events in order: one context event, at most one enriched event, token
// events as the model produces them, then either a done or an error event.
// The channel is closed after the last event. Cancelling ctx stops the run,
// including the provider stream, without waiting for the channel to be read.
func (s *AgentService) ProcessQuestion(ctx context.Context, userID, question string, opts QuestionOptions) <-chan Event {
	events := make(chan Event, s.config.EventBuffer)
	go s.run(ctx, userID, question, opts, events)
	return events
}

func (s *AgentService) run(ctx context.Context, userID, question string, opts QuestionOptions, events chan<- Event) {
	defer close(events)

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			s.metrics.RecordPipelineEvent(string(ev.Type))
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		s.logger.Error("pipeline failed", zap.String("userId", userID), zap.Error(err))
		emit(Event{Type: EventError, Err: err})
	}

	depth := opts.Depth
	if !depth.Valid() {
		depth = s.config.DefaultDepth
	}

	gc, err := s.contexts.GetUserContext(ctx, userID, depth)
	if err != nil {
		fail(err)
		return
	}
	if !emit(Event{Type: EventContext, Context: &gc}) {
		return
	}

	contextString := ContextToString(gc)

	var enriched *graph.EnrichedContext
	if ec, err := s.enricher.AnalyzeContextStrict(ctx, contextString, question); err != nil {
		s.logger.Warn("context enrichment failed", zap.String("userId", userID), zap.Error(err))
	} else {
		enriched = &ec
		if !emit(Event{Type: EventEnriched, Enriched: enriched}) {
			return
		}
	}
	if ctx.Err() != nil {
		return
	}

	history := FormatHistory(opts.History, s.config.HistoryTurns)
	req := ports.GenerateRequest{
		SystemPrompt: SystemPrompt,
		UserMessage:  BuildUserMessage(question, contextString, enriched, history),
		MaxTokens:    s.config.MaxTokens,
	}

	runes, completed, err := s.stream(ctx, req, func(token string) bool {
		return emit(Event{Type: EventToken, Token: token})
	})
	if !completed {
		return
	}
	if err != nil {
		fail(err)
		return
	}

	emit(Event{Type: EventDone, TokensUsed: estimateTokens(runes)})
}

// stream forwards provider chunks to onToken until the provider finishes. It
// reports completed=false when onToken refused a token because the consumer
// went away; the provider is cancelled and drained in that case.
func (s *AgentService) stream(ctx context.Context, req ports.GenerateRequest, onToken func(string) bool) (runes int, completed bool, err error) {
	var streamCtx context.Context
	var cancel context.CancelFunc
	if s.config.StreamTimeout > 0 {
		streamCtx, cancel = context.WithTimeout(ctx, s.config.StreamTimeout)
	} else {
		streamCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	streamCtx, span := observability.StartSpan(streamCtx, "answer.stream",
		attribute.Int("llm.max_tokens", req.MaxTokens),
	)
	defer func() {
		span.SetAttributes(attribute.Int("answer.runes", runes))
		observability.EndSpan(span, err)
	}()

	chunks := make(chan ports.StreamChunk)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.generator.Stream(streamCtx, req, chunks)
		close(chunks)
	}()

	for chunk := range chunks {
		runes += utf8.RuneCountInString(chunk.Content)
		if !onToken(chunk.Content) {
			cancel()
			for range chunks {
			}
			<-errCh
			return runes, false, nil
		}
	}

	err = <-errCh
	if err != nil && ctx.Err() != nil {
		return runes, false, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = errors.NewTimeoutError("answer stream").WithCause(err)
	}
	return runes, true, err
}

// QuickResponse answers from the default-depth context without enrichment or
// history and returns the complete text.
func (s *AgentService) QuickResponse(ctx context.Context, userID, question string) (AgentResponse, error) {
	gc, err := s.contexts.GetUserContext(ctx, userID, s.config.DefaultDepth)
	if err != nil {
		return AgentResponse{}, err
	}

	req := ports.GenerateRequest{
		SystemPrompt: SystemPrompt,
		UserMessage:  QuickUserMessage(question, ContextToString(gc)),
		MaxTokens:    s.config.MaxTokens,
	}

	var content strings.Builder
	_, _, err = s.stream(ctx, req, func(token string) bool {
		content.WriteString(token)
		return true
	})
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return AgentResponse{}, err
	}
	return AgentResponse{Content: content.String(), Context: gc}, nil
}

// estimateTokens approximates the token count as a quarter of the characters.
func estimateTokens(runes int) int {
	return int(math.Round(float64(runes) / 4))
}
