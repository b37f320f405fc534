// Package secrets retrieves application credentials from AWS Secrets
// Manager. One JSON secret holds every credential the service needs;
// values are cached after the first fetch and never logged.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsAPI is the slice of the Secrets Manager client the source uses.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Bundle is the decoded secret payload. Keys match the names stored in
// Secrets Manager.
type Bundle struct {
	GitHubAppID      string `json:"GITHUB_APP_ID"`
	GitHubPrivateKey string `json:"GITHUB_PRIVATE_KEY"`
	WebhookSecret    string `json:"GITHUB_WEBHOOK_SECRET"`
	BedrockModelID   string `json:"BEDROCK_MODEL_ID"`
	AnthropicAPIKey  string `json:"ANTHROPIC_API_KEY"`
	KnowledgeBaseID  string `json:"BEDROCK_KNOWLEDGE_BASE_ID"`
}

// Source fetches and caches the secret bundle.
type Source struct {
	client     SecretsAPI
	secretName string

	mu     sync.Mutex
	cached *Bundle
}

// NewSource constructs a Source for the named secret.
func NewSource(client SecretsAPI, secretName string) *Source {
	return &Source{client: client, secretName: secretName}
}

// Load returns the secret bundle, fetching it on first use.
func (s *Source) Load(ctx context.Context) (Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return *s.cached, nil
	}

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretName),
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("get secret %q: %w", s.secretName, err)
	}
	if out.SecretString == nil {
		return Bundle{}, fmt.Errorf("secret %q has no string value", s.secretName)
	}

	var bundle Bundle
	if err := json.Unmarshal([]byte(*out.SecretString), &bundle); err != nil {
		return Bundle{}, fmt.Errorf("secret %q is not valid JSON: %w", s.secretName, err)
	}
	s.cached = &bundle
	return bundle, nil
}

// Validate checks that the fields required for webhook serving are set.
func (b Bundle) Validate() error {
	if b.GitHubAppID == "" {
		return fmt.Errorf("secret missing GITHUB_APP_ID")
	}
	if b.GitHubPrivateKey == "" {
		return fmt.Errorf("secret missing GITHUB_PRIVATE_KEY")
	}
	if b.WebhookSecret == "" {
		return fmt.Errorf("secret missing GITHUB_WEBHOOK_SECRET")
	}
	return nil
}
