package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wardrobe-labs/concierge/pkg/config"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	ollamaDefaultBaseURL = "http://localhost:11434/v1"
)

// HTTPClient implements Client against any OpenAI-compatible
// chat-completions endpoint.
type HTTPClient struct {
	provider string
	cfg      config.LLMProviderConfig
	baseURL  string
	client   *http.Client
}

// NewHTTPClient creates a client for one configured provider.
func NewHTTPClient(provider string, cfg config.LLMProviderConfig) *HTTPClient {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		switch cfg.Type {
		case config.LLMProviderTypeOllama:
			baseURL = ollamaDefaultBaseURL
		default:
			baseURL = openAIDefaultBaseURL
		}
	}
	return &HTTPClient{
		provider: provider,
		cfg:      cfg,
		baseURL:  baseURL,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ChatCompletion performs one completion round trip, retrying transport
// failures up to the configured retry budget.
func (c *HTTPClient) ChatCompletion(ctx context.Context, req Request) (*Response, error) {
	payload, err := json.Marshal(chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		resp, err := c.doRequest(ctx, payload)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		resp.Latency = time.Since(start)
		return resp, nil
	}
	return nil, fmt.Errorf("provider %s failed after %d attempts: %w", c.provider, c.cfg.MaxRetries, lastErr)
}

func (c *HTTPClient) doRequest(ctx context.Context, payload []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", httpResp.StatusCode, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("provider error (%s): %s", decoded.Error.Type, decoded.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, string(body))
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	return &Response{
		Content:  decoded.Choices[0].Message.Content,
		Provider: c.provider,
		Usage:    decoded.Usage,
		Success:  true,
	}, nil
}
