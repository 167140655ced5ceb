// Package llm decorates text generators with resilience and instrumentation.
package llm

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/application/ports"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
	"github.com/mrsidrdx/context-graph-ai/pkg/observability"
)

// BreakerConfig holds configuration for the circuit breaker
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// BreakerGenerator wraps a TextGenerator in a circuit breaker and records
// request durations. Caller cancellations and configuration errors do not
// count as provider failures.
type BreakerGenerator struct {
	next    ports.TextGenerator
	cb      *gobreaker.CircuitBreaker
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewBreakerGenerator wraps next.
func NewBreakerGenerator(next ports.TextGenerator, config BreakerConfig, metrics *observability.Collector, logger *zap.Logger) *BreakerGenerator {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.IsConfiguration(err)
		},
	})

	return &BreakerGenerator{next: next, cb: cb, metrics: metrics, logger: logger}
}

// State reports the breaker state.
func (g *BreakerGenerator) State() gobreaker.State {
	return g.cb.State()
}

// Generate runs a buffered generation through the breaker.
func (g *BreakerGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	start := time.Now()
	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Generate(ctx, req)
	})
	err = g.translate(err)
	g.metrics.ObserveLLMRequest("generate", err, time.Since(start))
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// Stream runs a streamed generation through the breaker. The breaker counts
// the whole stream as one request.
func (g *BreakerGenerator) Stream(ctx context.Context, req ports.GenerateRequest, out chan<- ports.StreamChunk) error {
	start := time.Now()
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.next.Stream(ctx, req, out)
	})
	err = g.translate(err)
	g.metrics.ObserveLLMRequest("stream", err, time.Since(start))
	return err
}

func (g *BreakerGenerator) translate(err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return errors.NewUnavailableError("text generation").WithCause(err)
	}
	return err
}
