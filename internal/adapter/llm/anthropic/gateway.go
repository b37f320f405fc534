// Package anthropic implements the pipeline Gateway against the
// Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	llmhttp "github.com/example/reviewbot/internal/adapter/llm/http"
)

const (
	providerName            = "anthropic"
	defaultBaseURL          = "https://api.anthropic.com"
	defaultAnthropicVersion = "2023-06-01"
	defaultTimeout          = 60 * time.Second
	defaultMaxTokens        = 4000
	defaultTemperature      = 0.2
	defaultTopP             = 0.9
	systemPrompt            = "You are a code review assistant. Follow the response format requested in each prompt exactly."
)

// Gateway calls the Anthropic Messages API and returns the raw response
// text. It makes a single attempt per call; the pipeline owns retries.
type Gateway struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	client    *http.Client
	logger    llmhttp.Logger
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(url string) Option {
	return func(g *Gateway) { g.baseURL = strings.TrimRight(url, "/") }
}

// WithMaxTokens overrides the response token cap.
func WithMaxTokens(n int) Option {
	return func(g *Gateway) { g.maxTokens = n }
}

// WithTimeout overrides the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.client.Timeout = d }
}

// NewGateway constructs a Gateway for the given key and default model.
func NewGateway(apiKey, model string, logger llmhttp.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		apiKey:    apiKey,
		model:     model,
		baseURL:   defaultBaseURL,
		maxTokens: defaultMaxTokens,
		client:    &http.Client{Timeout: defaultTimeout},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Invoke sends one prompt and returns the concatenated response text.
// modelHint overrides the configured model when non-empty.
func (g *Gateway) Invoke(ctx context.Context, prompt string, modelHint string) (string, error) {
	model := g.model
	if modelHint != "" {
		model = modelHint
	}

	body, err := json.Marshal(MessagesRequest{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   g.maxTokens,
		System:      systemPrompt,
		Temperature: defaultTemperature,
		TopP:        defaultTopP,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", defaultAnthropicVersion)

	if g.logger != nil {
		g.logger.LogRequest(ctx, llmhttp.RequestLog{
			Provider:    providerName,
			Model:       model,
			Timestamp:   time.Now(),
			PromptChars: len(prompt),
		})
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		typed := llmhttp.NewTimeoutError(providerName, err.Error())
		g.logError(ctx, model, start, typed)
		return "", typed
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		message := fmt.Sprintf("HTTP %d", resp.StatusCode)
		var errResp ErrorResponse
		if json.Unmarshal(payload, &errResp) == nil && errResp.Error.Message != "" {
			message = errResp.Error.Message
		}
		typed := llmhttp.FromStatusCode(providerName, resp.StatusCode, message)
		g.logError(ctx, model, start, typed)
		return "", typed
	}

	var messagesResp MessagesResponse
	if err := json.Unmarshal(payload, &messagesResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	var parts []string
	for _, block := range messagesResp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.Join(parts, "")
	if text == "" {
		return "", &llmhttp.Error{
			Type:     llmhttp.ErrTypeUnknown,
			Message:  "no text content in response",
			Provider: providerName,
		}
	}

	if g.logger != nil {
		g.logger.LogResponse(ctx, llmhttp.ResponseLog{
			Provider:        providerName,
			Model:           messagesResp.Model,
			Timestamp:       time.Now(),
			Duration:        time.Since(start),
			ResponseExcerpt: text,
			StatusCode:      resp.StatusCode,
		})
	}
	return text, nil
}

func (g *Gateway) logError(ctx context.Context, model string, start time.Time, err *llmhttp.Error) {
	if g.logger == nil {
		return
	}
	g.logger.LogError(ctx, llmhttp.ErrorLog{
		Provider:   providerName,
		Model:      model,
		Timestamp:  time.Now(),
		Duration:   time.Since(start),
		Error:      err,
		StatusCode: err.StatusCode,
		Retryable:  err.Retryable,
	})
}
