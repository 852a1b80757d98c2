// Package backend provides the resilient client for the Node event backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/classify"
)

// Config holds configuration for the backend client.
type Config struct {
	// BaseURL is the backend base URL. It is normalized so the path always
	// ends in /api, matching the backend's route prefix.
	BaseURL string

	// ServiceKey authenticates calls that carry no user token.
	ServiceKey string

	// Timeout bounds a single request attempt.
	// Default: 30s
	Timeout time.Duration

	// MaxRetries is the number of attempts for retryable failures.
	// Default: 3
	MaxRetries int

	// InitialBackoff is the delay before the second attempt.
	// Default: 1s
	InitialBackoff time.Duration

	// MaxBackoff caps the inter-attempt delay.
	// Default: 30s
	MaxBackoff time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("backend: base URL is required")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("backend: max retries must be at least 1")
	}
	return nil
}

// Client performs JSON calls against the event backend with bounded
// exponential-backoff retry. Retry happens only when the classifier marks
// the failure retryable; client errors fail on the first attempt, and on
// exhaustion the last classified failure is returned verbatim.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	config     Config
	logger     *zap.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		baseURL:    normalizeBaseURL(cfg.BaseURL),
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger,
	}, nil
}

// normalizeBaseURL ensures the base URL points at the backend's /api prefix.
func normalizeBaseURL(base string) string {
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	return base
}

// Get performs a GET request against the backend.
func (c *Client) Get(ctx context.Context, path string, params map[string]string, userToken string) (map[string]any, error) {
	return c.call(ctx, http.MethodGet, path, nil, params, userToken)
}

// Post performs a POST request with a JSON body against the backend.
func (c *Client) Post(ctx context.Context, path string, body any, userToken string) (map[string]any, error) {
	return c.call(ctx, http.MethodPost, path, body, nil, userToken)
}

// call performs one logical request with retry.
func (c *Client) call(ctx context.Context, method, path string, body any, params map[string]string, userToken string) (map[string]any, error) {
	var lastClass classify.Classification
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.config.MaxBackoff {
				backoff = c.config.MaxBackoff
			}
		}

		result, err := c.doRequest(ctx, method, path, body, params, userToken)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("backend call recovered after retries",
					zap.String("method", method),
					zap.String("path", path),
					zap.Int("attempts", attempt+1))
			}
			return result, nil
		}

		lastClass = classify.Classify(err)
		if !lastClass.Retryable {
			c.logger.Debug("backend call failed with non-retryable error",
				zap.String("method", method),
				zap.String("path", path),
				zap.String("category", string(lastClass.Category)))
			return nil, &classify.Error{Classification: lastClass}
		}

		c.logger.Warn("backend call failed, retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("category", string(lastClass.Category)),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.config.MaxRetries),
			zap.Duration("backoff", backoff))
	}

	// Retry budget exhausted: the last classification is returned as-is so
	// callers see the same shape whether the failure was on attempt 1 or N.
	return nil, &classify.Error{Classification: lastClass}
}

// doRequest performs a single attempt.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, params map[string]string, userToken string) (map[string]any, error) {
	reqURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		reqURL += "?" + values.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.bearerToken(userToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &classify.StatusError{
			Code:    resp.StatusCode,
			Message: extractErrorMessage(respBody),
		}
	}

	if len(respBody) == 0 {
		return map[string]any{}, nil
	}
	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &classify.Error{Classification: classify.Classification{
			Category:   classify.CategoryUnknown,
			Message:    fmt.Sprintf("backend returned a malformed body: %v", err),
			Suggestion: "The backend response could not be parsed. Try again or report the issue.",
		}}
	}
	return result, nil
}

// bearerToken prefers the user's token and falls back to the service key.
func (c *Client) bearerToken(userToken string) string {
	if userToken != "" {
		return userToken
	}
	return c.serviceKey
}

// extractErrorMessage pulls the message or error field out of an error body.
func extractErrorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	const maxRaw = 200
	raw := string(body)
	if len(raw) > maxRaw {
		raw = raw[:maxRaw]
	}
	return raw
}
