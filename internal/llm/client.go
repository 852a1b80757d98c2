package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/myfevent/agentd/internal/config"
)

// Defaults for the chat client.
const (
	defaultBaseURL     = "https://api.openai.com"
	defaultModel       = "gpt-4o-mini"
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond
	defaultRateLimit   = 2.0
	defaultBurst       = 4
)

// Client is the model interface consumed by the orchestrator and the
// planner tools.
type Client interface {
	// Chat runs one chat-completions call with optional tool definitions
	// and returns the assistant message, which may carry tool calls.
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (Message, error)

	// CompleteJSON runs a single-prompt call in JSON mode and decodes the
	// response body into out.
	CompleteJSON(ctx context.Context, system, prompt string, out any) error
}

// Config holds configuration for the chat client.
type Config struct {
	// BaseURL is the API root, without the /v1 path.
	BaseURL string

	// APIKey authenticates requests. Required.
	APIKey config.Secret

	// Model is the chat model identifier.
	Model string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt for
	// rate-limited and server-side failures.
	MaxRetries int

	// RateLimit is the sustained requests-per-second budget.
	RateLimit float64

	// Burst is the rate limiter burst size.
	Burst int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RateLimit == 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.Burst == 0 {
		c.Burst = defaultBurst
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.APIKey.IsSet() {
		return fmt.Errorf("llm: api key is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("llm: max retries must be non-negative")
	}
	return nil
}

// HTTPClient talks to an OpenAI-compatible chat-completions endpoint.
type HTTPClient struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewHTTPClient creates a chat client.
func NewHTTPClient(cfg Config, logger *zap.Logger) (*HTTPClient, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		logger:     logger,
	}, nil
}

type chatRequest struct {
	Model          string           `json:"model"`
	Messages       []Message        `json:"messages"`
	Tools          []ToolDefinition `json:"tools,omitempty"`
	ToolChoice     string           `json:"tool_choice,omitempty"`
	Temperature    float64          `json:"temperature"`
	ResponseFormat *responseFormat  `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// retryableError marks transient failures worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Chat implements Client.
func (c *HTTPClient) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (Message, error) {
	req := chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Tools:       tools,
		Temperature: 0.2,
	}
	if len(tools) > 0 {
		req.ToolChoice = "auto"
	}

	resp, err := c.complete(ctx, req)
	if err != nil {
		return Message{}, err
	}
	return resp.Choices[0].Message, nil
}

// CompleteJSON implements Client. The model is forced into JSON mode and the
// body is decoded into out.
func (c *HTTPClient) CompleteJSON(ctx context.Context, system, prompt string, out any) error {
	req := chatRequest{
		Model: c.config.Model,
		Messages: []Message{
			SystemMessage(system),
			UserMessage(prompt),
		},
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	resp, err := c.complete(ctx, req)
	if err != nil {
		return err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("decoding model JSON: %w", err)
	}
	return nil
}

// complete runs the request with rate limiting and retries on transient
// failures.
func (c *HTTPClient) complete(ctx context.Context, req chatRequest) (*chatResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.doRequest(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return nil, err
		}
		c.logger.Warn("model call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) doRequest(ctx context.Context, req chatRequest) (*chatResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.config.BaseURL, "/")+"/v1/chat/completions",
		bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey.Value())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return nil, &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}
	return &chatResp, nil
}

// Ensure interfaces are implemented at compile time.
var _ Client = (*HTTPClient)(nil)
