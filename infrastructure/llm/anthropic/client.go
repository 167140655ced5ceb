// Package anthropic is a minimal client for the Anthropic Messages API, with
// both a buffered and a server-sent-events streaming call.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/application/ports"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
)

const (
	// DefaultModel is the default Claude model
	DefaultModel = "claude-sonnet-4-5-20250929"

	// BaseURL is the Anthropic API endpoint
	BaseURL = "https://api.anthropic.com/v1"

	// APIVersion is the required Anthropic API version header
	APIVersion = "2023-06-01"

	defaultMaxTokens = 4096
	serviceName      = "anthropic"
	maxLineSize      = 1 << 20
)

// Config holds Anthropic client configuration
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	RequestTimeout time.Duration
}

// Client implements ports.TextGenerator against the Messages API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client. A missing API key is not an error here; every
// call fails with a configuration error until one is provided.
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaultMaxTokens
	}

	// The client deadline would cut long streams, so only the wait for
	// response headers is bounded at the transport.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = config.RequestTimeout

	return &Client{
		config:     config,
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}
}

// SetHTTPClient allows overriding the HTTP client for testing
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// MessagesRequest represents a request to the Anthropic Messages API
type MessagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
	System    string    `json:"system,omitempty"`
	Stream    bool      `json:"stream,omitempty"`
}

// Message represents a message in the conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessagesResponse represents the response from the Messages API
type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage represents token usage information
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamEvent represents a streaming event from the API
type StreamEvent struct {
	Type  string       `json:"type"`
	Delta *StreamDelta `json:"delta,omitempty"`
	Error *APIError    `json:"error,omitempty"`
}

// StreamDelta represents incremental content in streaming
type StreamDelta struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

// APIError is the error object carried by error events.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (c *Client) buildRequest(req ports.GenerateRequest, stream bool) MessagesRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	return MessagesRequest{
		Model:     c.config.Model,
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Stream:    stream,
		Messages:  []Message{{Role: "user", Content: req.UserMessage}},
	}
}

// Generate returns the concatenated text blocks of a single response.
func (c *Client) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	if !c.IsConfigured() {
		return "", errors.NewConfigurationError("ANTHROPIC_API_KEY")
	}

	if c.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	resp, err := c.post(ctx, c.buildRequest(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var messagesResp MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&messagesResp); err != nil {
		return "", errors.NewExternalError(serviceName, errors.Wrap(err, "failed to decode response"))
	}

	var content strings.Builder
	for _, block := range messagesResp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	c.logger.Debug("anthropic message completed",
		zap.String("model", messagesResp.Model),
		zap.Int("inputTokens", messagesResp.Usage.InputTokens),
		zap.Int("outputTokens", messagesResp.Usage.OutputTokens),
	)
	return content.String(), nil
}

// Stream sends each text delta to out as it arrives and returns nil once the
// API reports message_stop. It returns ctx.Err() if ctx ends first and never
// closes out.
func (c *Client) Stream(ctx context.Context, req ports.GenerateRequest, out chan<- ports.StreamChunk) error {
	if !c.IsConfigured() {
		return errors.NewConfigurationError("ANTHROPIC_API_KEY")
	}

	resp, err := c.post(ctx, c.buildRequest(req, true))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines, comments and event names; the JSON payload
		// carries the type.
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var event StreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			c.logger.Warn("skipping malformed stream event", zap.Error(err))
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta == nil || event.Delta.Text == "" {
				continue
			}
			select {
			case out <- ports.StreamChunk{Content: event.Delta.Text}:
			case <-ctx.Done():
				return ctx.Err()
			}
		case "message_stop":
			return nil
		case "error":
			msg := "stream error"
			if event.Error != nil {
				msg = fmt.Sprintf("%s: %s", event.Error.Type, event.Error.Message)
			}
			return errors.NewExternalError(serviceName, errors.New(msg))
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return errors.NewExternalError(serviceName, errors.Wrap(err, "error reading stream"))
	}
	return errors.NewExternalError(serviceName, io.ErrUnexpectedEOF)
}

func (c *Client) post(ctx context.Context, body MessagesRequest) (*http.Response, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)
	httpReq.Header.Set("anthropic-version", APIVersion)
	if body.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewExternalError(serviceName, errors.Wrap(err, "failed to send request"))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, errors.NewExternalError(serviceName,
			errors.Newf("API request failed with status %d: %s", resp.StatusCode, string(respBody)))
	}
	return resp, nil
}
