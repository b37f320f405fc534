// Package config loads and validates application configuration. The
// resulting Config is passed explicitly into constructors; nothing
// reads configuration ambiently once the process is wired.
package config

// Config represents the full application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	GitHub        GitHubConfig        `yaml:"github"`
	LLM           LLMConfig           `yaml:"llm"`
	Review        ReviewConfig        `yaml:"review"`
	Knowledge     KnowledgeConfig     `yaml:"knowledge"`
	Secrets       SecretsConfig       `yaml:"secrets"`
	Git           GitConfig           `yaml:"git"`
	Store         StoreConfig         `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	ListenAddr  string `yaml:"listenAddr"`
	TriggerTeam string `yaml:"triggerTeam"`
}

// GitHubConfig holds GitHub App credentials for local runs. In the
// serve mode these normally come from Secrets Manager instead.
type GitHubConfig struct {
	AppID          int64  `yaml:"appID"`
	PrivateKeyPath string `yaml:"privateKeyPath"`
	WebhookSecret  string `yaml:"webhookSecret"`
}

// LLMConfig selects and tunes the review backend.
type LLMConfig struct {
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"apiKey"`
	MaxTokens         int     `yaml:"maxTokens"`
	Timeout           string  `yaml:"timeout"`
	MaxAttempts       int     `yaml:"maxAttempts"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// ReviewConfig tunes the review pipeline itself.
type ReviewConfig struct {
	Guidelines      string `yaml:"guidelines"`
	MaxPromptTokens int    `yaml:"maxPromptTokens"`
	MaxSnippets     int    `yaml:"maxSnippets"`
	RunDeadline     string `yaml:"runDeadline"`
}

// KnowledgeConfig points at the knowledge base. A Bedrock knowledge
// base id selects retrieve-and-generate; otherwise a bucket selects the
// S3 listing source.
type KnowledgeConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	KnowledgeBaseID string `yaml:"knowledgeBaseID"`
	ModelARN        string `yaml:"modelARN"`
}

// SecretsConfig names the Secrets Manager secret used in serve mode.
type SecretsConfig struct {
	Name   string `yaml:"name"`
	Region string `yaml:"region"`
}

// GitConfig locates the repository for local reviews.
type GitConfig struct {
	RepositoryDir string `yaml:"repositoryDir"`
}

// StoreConfig configures optional run-history persistence.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig sets verbosity and output encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
