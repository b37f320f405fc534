// Package bedrock implements the pipeline Gateway against AWS Bedrock
// runtime using the Claude text-completion body format.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	llmhttp "github.com/example/reviewbot/internal/adapter/llm/http"
)

const (
	providerName       = "bedrock"
	defaultMaxTokens   = 4000
	defaultTemperature = 0.2
	defaultTopP        = 0.9
)

// InvokeAPI is the slice of the Bedrock runtime client the gateway uses.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// invokeBody is the Claude completion request body Bedrock expects.
type invokeBody struct {
	Prompt            string  `json:"prompt"`
	MaxTokensToSample int     `json:"max_tokens_to_sample"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
}

// invokeResult is the completion response body.
type invokeResult struct {
	Completion string `json:"completion"`
}

// Gateway calls Bedrock InvokeModel and returns the raw completion text.
// It makes a single attempt per call; the pipeline owns retries.
type Gateway struct {
	client    InvokeAPI
	modelID   string
	maxTokens int
	logger    llmhttp.Logger
}

// NewGateway constructs a Gateway for the given runtime client and
// default model identifier.
func NewGateway(client InvokeAPI, modelID string, logger llmhttp.Logger) *Gateway {
	return &Gateway{
		client:    client,
		modelID:   modelID,
		maxTokens: defaultMaxTokens,
		logger:    logger,
	}
}

// SetMaxTokens overrides the response token cap.
func (g *Gateway) SetMaxTokens(n int) {
	g.maxTokens = n
}

// Invoke sends one prompt and returns the completion text. modelHint
// overrides the configured model identifier when non-empty.
func (g *Gateway) Invoke(ctx context.Context, prompt string, modelHint string) (string, error) {
	model := g.modelID
	if modelHint != "" {
		model = modelHint
	}

	body, err := json.Marshal(invokeBody{
		// The completion API requires Human/Assistant framing.
		Prompt:            fmt.Sprintf("\n\nHuman: %s\n\nAssistant:", prompt),
		MaxTokensToSample: g.maxTokens,
		Temperature:       defaultTemperature,
		TopP:              defaultTopP,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	if g.logger != nil {
		g.logger.LogRequest(ctx, llmhttp.RequestLog{
			Provider:    providerName,
			Model:       model,
			Timestamp:   time.Now(),
			PromptChars: len(prompt),
		})
	}

	start := time.Now()
	out, err := g.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		typed := classify(err)
		if g.logger != nil {
			g.logger.LogError(ctx, llmhttp.ErrorLog{
				Provider:  providerName,
				Model:     model,
				Timestamp: time.Now(),
				Duration:  time.Since(start),
				Error:     typed,
				Retryable: typed.Retryable,
			})
		}
		return "", typed
	}

	var result invokeResult
	if err := json.Unmarshal(out.Body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if result.Completion == "" {
		return "", &llmhttp.Error{
			Type:     llmhttp.ErrTypeUnknown,
			Message:  "empty completion in response",
			Provider: providerName,
		}
	}

	if g.logger != nil {
		g.logger.LogResponse(ctx, llmhttp.ResponseLog{
			Provider:        providerName,
			Model:           model,
			Timestamp:       time.Now(),
			Duration:        time.Since(start),
			ResponseExcerpt: result.Completion,
		})
	}
	return result.Completion, nil
}

// classify maps AWS SDK errors onto the shared error taxonomy.
func classify(err error) *llmhttp.Error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return &llmhttp.Error{Type: llmhttp.ErrTypeRateLimit, Message: apiErr.ErrorMessage(), Retryable: true, Provider: providerName}
		case "ModelTimeoutException":
			return &llmhttp.Error{Type: llmhttp.ErrTypeTimeout, Message: apiErr.ErrorMessage(), Retryable: true, Provider: providerName}
		case "ServiceUnavailableException", "InternalServerException", "ModelNotReadyException":
			return &llmhttp.Error{Type: llmhttp.ErrTypeServiceUnavailable, Message: apiErr.ErrorMessage(), Retryable: true, Provider: providerName}
		case "AccessDeniedException", "UnrecognizedClientException":
			return &llmhttp.Error{Type: llmhttp.ErrTypeAuthentication, Message: apiErr.ErrorMessage(), Provider: providerName}
		case "ResourceNotFoundException":
			return &llmhttp.Error{Type: llmhttp.ErrTypeModelNotFound, Message: apiErr.ErrorMessage(), Provider: providerName}
		case "ValidationException":
			return &llmhttp.Error{Type: llmhttp.ErrTypeInvalidRequest, Message: apiErr.ErrorMessage(), Provider: providerName}
		default:
			return &llmhttp.Error{Type: llmhttp.ErrTypeUnknown, Message: apiErr.ErrorMessage(), Provider: providerName}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return llmhttp.NewTimeoutError(providerName, err.Error())
	}
	return &llmhttp.Error{Type: llmhttp.ErrTypeUnknown, Message: err.Error(), Provider: providerName}
}
