package openai

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elokus/StructGenie/llm"
	"github.com/elokus/StructGenie/llm/retry"
)

// Config configures an OpenAI-compatible chat completions backend.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Temperature is sent unless a request overrides it.
	Temperature float64
	MaxTokens   int
	// Timeout bounds one HTTP call. Defaults to 60s.
	Timeout time.Duration
	// EndpointPath defaults to "/v1/chat/completions".
	EndpointPath string
	// SystemPrompt, when set, is sent as a system message before the prompt.
	SystemPrompt string
}

// Client is an llm.Predictor backed by an OpenAI-compatible HTTP API. Every
// prompt is sent as a single user message.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New creates a client. A nil logger is replaced with a no-op logger.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   newHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "openai")),
	}
}

// newHTTPClient enforces TLS 1.2+ with AEAD cipher suites.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
				CipherSuites: []uint16{
					tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
					tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
					tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
					tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
					tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
					tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
				},
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// =============================================================================
// Wire types
// =============================================================================

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		FinishReason string  `json:"finish_reason"`
		Message      message `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// =============================================================================
// Predict
// =============================================================================

// Predict implements llm.Predictor. Rate limits, upstream 5xx and network
// failures are returned wrapped with retry.WrapRetryable.
func (c *Client) Predict(ctx context.Context, req *llm.Request) (string, llm.Metrics, error) {
	body := c.buildRequest(req)
	payload, err := json.Marshal(body)
	if err != nil {
		return "", llm.Metrics{}, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.EndpointPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", llm.Metrics{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", llm.Metrics{}, ctx.Err()
		}
		return "", llm.Metrics{}, retry.WrapRetryable(fmt.Errorf("openai request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
		c.logger.Debug("completion failed", zap.Int("status", resp.StatusCode), zap.String("message", apiErr.Message))
		if apiErr.Retryable() {
			return "", llm.Metrics{}, retry.WrapRetryable(apiErr)
		}
		return "", llm.Metrics{}, apiErr
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", llm.Metrics{}, retry.WrapRetryable(fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", llm.Metrics{}, fmt.Errorf("openai response %s has no choices", out.ID)
	}

	m := llm.Metrics{
		ExecutionTime: time.Since(start),
		ModelName:     out.Model,
		ModelConfig:   map[string]any{"model": body.Model, "max_tokens": body.MaxTokens},
	}
	if body.Temperature != nil {
		m.ModelConfig["temperature"] = *body.Temperature
	}
	if m.ModelName == "" {
		m.ModelName = body.Model
	}
	if out.Usage != nil {
		m.PromptTokens = out.Usage.PromptTokens
		m.CompletionTokens = out.Usage.CompletionTokens
		m.TotalTokens = out.Usage.TotalTokens
	}
	return out.Choices[0].Message.Content, m, nil
}

func (c *Client) buildRequest(req *llm.Request) chatRequest {
	body := chatRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
	}
	temp := c.cfg.Temperature
	body.Temperature = &temp

	if req.Model != "" {
		body.Model = req.Model
	}
	if req.Temperature != nil {
		body.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if c.cfg.SystemPrompt != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: c.cfg.SystemPrompt})
	}
	body.Messages = append(body.Messages, message{Role: "user", Content: req.Prompt})
	return body
}

// APIError is a non-2xx response of the completions API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the status is transient: 429, 5xx and the 529
// overload status some gateways use.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// readErrorMessage extracts error.message from a JSON error body, falling
// back to the raw text.
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}
