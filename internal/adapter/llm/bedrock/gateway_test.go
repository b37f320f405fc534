package bedrock

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmhttp "github.com/example/reviewbot/internal/adapter/llm/http"
)

type fakeInvokeAPI struct {
	input      *bedrockruntime.InvokeModelInput
	completion string
	err        error
}

func (f *fakeInvokeAPI) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	body, _ := json.Marshal(invokeResult{Completion: f.completion})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

func TestInvokeFramesPromptAndParsesCompletion(t *testing.T) {
	api := &fakeInvokeAPI{completion: "looks good"}
	g := NewGateway(api, "anthropic.claude-v2", nil)

	text, err := g.Invoke(context.Background(), "review this", "")
	require.NoError(t, err)
	assert.Equal(t, "looks good", text)

	require.NotNil(t, api.input)
	assert.Equal(t, "anthropic.claude-v2", *api.input.ModelId)
	assert.Equal(t, "application/json", *api.input.ContentType)

	var body invokeBody
	require.NoError(t, json.Unmarshal(api.input.Body, &body))
	assert.Equal(t, "\n\nHuman: review this\n\nAssistant:", body.Prompt)
	assert.Equal(t, defaultMaxTokens, body.MaxTokensToSample)
}

func TestInvokeModelHintOverridesConfigured(t *testing.T) {
	api := &fakeInvokeAPI{completion: "ok"}
	g := NewGateway(api, "anthropic.claude-v2", nil)

	_, err := g.Invoke(context.Background(), "p", "anthropic.claude-3-sonnet")
	require.NoError(t, err)
	assert.Equal(t, "anthropic.claude-3-sonnet", *api.input.ModelId)
}

func TestSetMaxTokens(t *testing.T) {
	api := &fakeInvokeAPI{completion: "ok"}
	g := NewGateway(api, "m", nil)
	g.SetMaxTokens(512)

	_, err := g.Invoke(context.Background(), "p", "")
	require.NoError(t, err)

	var body invokeBody
	require.NoError(t, json.Unmarshal(api.input.Body, &body))
	assert.Equal(t, 512, body.MaxTokensToSample)
}

func TestInvokeEmptyCompletionIsAnError(t *testing.T) {
	api := &fakeInvokeAPI{completion: ""}
	g := NewGateway(api, "m", nil)

	_, err := g.Invoke(context.Background(), "p", "")
	var typed *llmhttp.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, llmhttp.ErrTypeUnknown, typed.Type)
}

func TestClassifyAPIErrors(t *testing.T) {
	cases := []struct {
		code      string
		wantType  llmhttp.ErrorType
		retryable bool
	}{
		{"ThrottlingException", llmhttp.ErrTypeRateLimit, true},
		{"TooManyRequestsException", llmhttp.ErrTypeRateLimit, true},
		{"ModelTimeoutException", llmhttp.ErrTypeTimeout, true},
		{"ServiceUnavailableException", llmhttp.ErrTypeServiceUnavailable, true},
		{"InternalServerException", llmhttp.ErrTypeServiceUnavailable, true},
		{"ModelNotReadyException", llmhttp.ErrTypeServiceUnavailable, true},
		{"AccessDeniedException", llmhttp.ErrTypeAuthentication, false},
		{"UnrecognizedClientException", llmhttp.ErrTypeAuthentication, false},
		{"ResourceNotFoundException", llmhttp.ErrTypeModelNotFound, false},
		{"ValidationException", llmhttp.ErrTypeInvalidRequest, false},
		{"SomethingNovelException", llmhttp.ErrTypeUnknown, false},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			err := classify(&smithy.GenericAPIError{Code: tc.code, Message: "m"})
			assert.Equal(t, tc.wantType, err.Type)
			assert.Equal(t, tc.retryable, err.Retryable)
			assert.Equal(t, providerName, err.Provider)
		})
	}
}

func TestClassifyDeadlineExceeded(t *testing.T) {
	err := classify(context.DeadlineExceeded)
	assert.Equal(t, llmhttp.ErrTypeTimeout, err.Type)
	assert.True(t, err.Retryable)
}

func TestInvokeSurfacesClassifiedError(t *testing.T) {
	api := &fakeInvokeAPI{err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}}
	g := NewGateway(api, "m", nil)

	_, err := g.Invoke(context.Background(), "p", "")
	var typed *llmhttp.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, llmhttp.ErrTypeRateLimit, typed.Type)
	assert.True(t, typed.Retryable)
}
