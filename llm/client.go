// Package llm provides a provider-agnostic client for the language models
// whose answers the service grades. It handles request construction through
// registered provider adapters, bounded retry with exponential backoff, and
// transient/fatal error classification.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/mathcheck/model"
)

// maxResponseSize limits the response body read to prevent memory
// exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Message is one chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Request asks a model to answer a problem.
type Request struct {
	// Model names a registry entry. Empty uses the registry default.
	Model string

	// Messages is the conversation to send.
	Messages []Message

	// Temperature overrides the endpoint's configured temperature when
	// non-nil.
	Temperature *float64

	// MaxTokens overrides the endpoint's configured cap when positive.
	MaxTokens int
}

// TokenUsage reports token consumption for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completion result.
type Response struct {
	// RequestID uniquely identifies this call for log correlation.
	RequestID string

	// Content is the generated text, expected to contain a boxed answer.
	Content string

	// Model is the model that actually produced the completion.
	Model string

	// Usage holds token consumption if the provider reported it.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// Client sends completion requests.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) { client.httpClient = c }
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) { client.retryConfig = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) { client.logger = logger }
}

// NewClient creates a client over the given model registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // allow time for long completions
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a completion request with retry. Transient failures back
// off and retry up to the configured attempt cap; fatal failures return
// immediately.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	name, endpoint, err := c.registry.Resolve(req.Model)
	if err != nil {
		return nil, err
	}
	provider := GetProvider(endpoint.Provider)
	if provider == nil {
		return nil, fmt.Errorf("no provider registered for %q", endpoint.Provider)
	}

	requestID := uuid.New().String()

	temperature := endpoint.Temperature
	if req.Temperature != nil {
		temperature = req.Temperature
	}
	maxTokens := endpoint.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.retryConfig.backoff(attempt - 1)
			c.logger.Debug("retrying completion",
				"request_id", requestID, "attempt", attempt, "backoff", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		resp, err := c.tryOnce(ctx, provider, endpoint, name, req.Messages, temperature, maxTokens)
		if err == nil {
			resp.RequestID = requestID
			c.registry.MarkHealthy(name)
			c.logger.Info("completion succeeded",
				"request_id", requestID, "model", name,
				"tokens", resp.Usage.TotalTokens, "attempts", attempt)
			return resp, nil
		}
		lastErr = err
		if IsFatal(err) {
			c.logger.Warn("completion failed permanently",
				"request_id", requestID, "model", name, "error", err)
			return nil, err
		}
		c.logger.Warn("completion attempt failed",
			"request_id", requestID, "model", name, "attempt", attempt, "error", err)
	}
	c.registry.MarkUnhealthy(name)
	return nil, fmt.Errorf("all %d attempts failed: %w", c.retryConfig.MaxAttempts, lastErr)
}

func (c *Client) tryOnce(ctx context.Context, provider Provider, endpoint *model.Endpoint,
	name string, messages []Message, temperature *float64, maxTokens int) (*Response, error) {

	body, err := provider.BuildRequestBody(endpoint.Model, messages, temperature, maxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request for %s: %w", name, err))
	}

	url := provider.BuildURL(endpoint.URL, endpoint.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("send request: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d: %s", httpResp.StatusCode, truncate(respBody, 512))
		if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
			return nil, NewTransientError(err)
		}
		return nil, NewFatalError(err)
	}

	resp, err := provider.ParseResponse(respBody, endpoint.Model)
	if err != nil {
		return nil, NewFatalError(err)
	}
	return resp, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
