package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmhttp "github.com/example/reviewbot/internal/adapter/llm/http"
)

func TestInvokeSendsMessagesRequest(t *testing.T) {
	var captured MessagesRequest
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(MessagesResponse{
			Model: "claude-3-5-sonnet",
			Content: []ContentBlock{
				{Type: "text", Text: "first "},
				{Type: "tool_use", Text: "ignored"},
				{Type: "text", Text: "second"},
			},
		})
	}))
	defer server.Close()

	g := NewGateway("sk-test", "claude-3-5-sonnet", nil, WithBaseURL(server.URL))
	text, err := g.Invoke(context.Background(), "review this diff", "")
	require.NoError(t, err)

	assert.Equal(t, "first second", text, "only text blocks are concatenated")
	assert.Equal(t, "sk-test", headers.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", headers.Get("anthropic-version"))
	assert.Equal(t, "claude-3-5-sonnet", captured.Model)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "review this diff", captured.Messages[0].Content)
	assert.Equal(t, defaultMaxTokens, captured.MaxTokens)
	assert.NotEmpty(t, captured.System)
}

func TestInvokeModelHintOverridesDefault(t *testing.T) {
	var captured MessagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(MessagesResponse{Content: []ContentBlock{{Type: "text", Text: "ok"}}})
	}))
	defer server.Close()

	g := NewGateway("sk-test", "default-model", nil, WithBaseURL(server.URL))
	_, err := g.Invoke(context.Background(), "p", "override-model")
	require.NoError(t, err)
	assert.Equal(t, "override-model", captured.Model)
}

func TestInvokeMapsErrorStatusToTypedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"type": "rate_limit_error", "message": "try again later"}}`))
	}))
	defer server.Close()

	g := NewGateway("sk-test", "m", nil, WithBaseURL(server.URL))
	_, err := g.Invoke(context.Background(), "p", "")

	var typed *llmhttp.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, llmhttp.ErrTypeRateLimit, typed.Type)
	assert.True(t, typed.Retryable)
	assert.Contains(t, typed.Message, "try again later")
}

func TestInvokeOverloadedStatusIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
	}))
	defer server.Close()

	g := NewGateway("sk-test", "m", nil, WithBaseURL(server.URL))
	_, err := g.Invoke(context.Background(), "p", "")

	var typed *llmhttp.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, llmhttp.ErrTypeServiceUnavailable, typed.Type)
	assert.True(t, typed.Retryable)
}

func TestInvokeEmptyContentIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(MessagesResponse{Content: []ContentBlock{{Type: "tool_use", Text: "x"}}})
	}))
	defer server.Close()

	g := NewGateway("sk-test", "m", nil, WithBaseURL(server.URL))
	_, err := g.Invoke(context.Background(), "p", "")

	var typed *llmhttp.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, llmhttp.ErrTypeUnknown, typed.Type)
	assert.False(t, typed.Retryable)
}

func TestInvokeTransportFailureIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	g := NewGateway("sk-test", "m", nil, WithBaseURL(server.URL))
	_, err := g.Invoke(context.Background(), "p", "")

	var typed *llmhttp.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, llmhttp.ErrTypeTimeout, typed.Type)
	assert.True(t, typed.Retryable)
}

func TestInvokeRespectsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGateway("sk-test", "m", nil, WithBaseURL(server.URL))
	_, err := g.Invoke(ctx, "p", "")
	require.Error(t, err)

	var typed *llmhttp.Error
	if errors.As(err, &typed) {
		assert.Equal(t, llmhttp.ErrTypeTimeout, typed.Type)
	}
}
