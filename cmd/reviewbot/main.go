package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/example/reviewbot/internal/adapter/cli"
	gitadapter "github.com/example/reviewbot/internal/adapter/git"
	ghadapter "github.com/example/reviewbot/internal/adapter/github"
	"github.com/example/reviewbot/internal/adapter/knowledge"
	"github.com/example/reviewbot/internal/adapter/llm"
	"github.com/example/reviewbot/internal/adapter/llm/anthropic"
	"github.com/example/reviewbot/internal/adapter/llm/bedrock"
	llmhttp "github.com/example/reviewbot/internal/adapter/llm/http"
	"github.com/example/reviewbot/internal/adapter/llm/static"
	"github.com/example/reviewbot/internal/adapter/secrets"
	storeadapter "github.com/example/reviewbot/internal/adapter/store"
	"github.com/example/reviewbot/internal/adapter/store/sqlite"
	"github.com/example/reviewbot/internal/config"
	"github.com/example/reviewbot/internal/observability"
	"github.com/example/reviewbot/internal/redaction"
	"github.com/example/reviewbot/internal/server"
	"github.com/example/reviewbot/internal/usecase/pipeline"
	"github.com/example/reviewbot/internal/usecase/review"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Println(llmhttp.RedactURLSecrets(err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	redactor := redaction.NewEngine(cfg.GitHub.WebhookSecret)

	deps := cli.Dependencies{
		Serve: func(ctx context.Context, addr string) error {
			return serve(ctx, addr, cfg, redactor, logger)
		},
		DefaultListenAddr: cfg.Server.ListenAddr,
		Version:           version,
	}
	// Serve mode builds its own gateway after the secret bundle loads, so
	// a gateway that cannot be built from file config alone only disables
	// the local review command.
	if gateway, err := buildGateway(ctx, cfg, logger); err == nil {
		orchestrator := pipeline.New(pipelineConfig(cfg), pipeline.Deps{
			Gateway:  gateway,
			Prompts:  pipeline.NewPromptBuilder(llm.EstimateTokens, cfg.Review.MaxPromptTokens, cfg.Review.MaxSnippets),
			Redactor: redactor,
			Logger:   logger,
		})
		deps.LocalReviewer = review.NewLocal(gitadapter.NewEngine(cfg.Git.RepositoryDir), orchestrator)
	} else {
		logger.LogWarning(ctx, "local review disabled", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if cfg.Store.Enabled {
		historyStore, err := sqlite.NewStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer historyStore.Close()
		deps.History = historyLister{store: historyStore}
	}

	return cli.NewRootCommand(deps).ExecuteContext(ctx)
}

// serve wires the webhook server and blocks until the context ends.
// The gateway is built here rather than in run so that secret-held model
// settings are in effect before it exists.
func serve(ctx context.Context, addr string, cfg config.Config, redactor pipeline.Redactor, logger *llmhttp.DefaultLogger) error {
	appID := cfg.GitHub.AppID
	privateKey := []byte(nil)
	webhookSecret := cfg.GitHub.WebhookSecret

	if cfg.Secrets.Name != "" {
		awsCfg, err := loadAWSConfig(ctx, cfg.Secrets.Region)
		if err != nil {
			return err
		}
		source := secrets.NewSource(secretsmanager.NewFromConfig(awsCfg), cfg.Secrets.Name)
		bundle, err := source.Load(ctx)
		if err != nil {
			return err
		}
		if err := bundle.Validate(); err != nil {
			return err
		}
		parsed, err := strconv.ParseInt(bundle.GitHubAppID, 10, 64)
		if err != nil {
			return fmt.Errorf("parse app id: %w", err)
		}
		appID = parsed
		privateKey = []byte(bundle.GitHubPrivateKey)
		webhookSecret = bundle.WebhookSecret
		cfg = applySecretOverrides(cfg, bundle)
	} else if cfg.GitHub.PrivateKeyPath != "" {
		key, err := os.ReadFile(cfg.GitHub.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("read private key: %w", err)
		}
		privateKey = key
	}
	if appID == 0 || len(privateKey) == 0 || webhookSecret == "" {
		return errors.New("serve mode requires GitHub App credentials and a webhook secret")
	}

	gateway, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	orchestrator := pipeline.New(pipelineConfig(cfg), pipeline.Deps{
		Gateway:  gateway,
		Prompts:  pipeline.NewPromptBuilder(llm.EstimateTokens, cfg.Review.MaxPromptTokens, cfg.Review.MaxSnippets),
		Redactor: redactor,
		Logger:   logger,
	})

	var knowledgeSource review.KnowledgeSource
	switch {
	case cfg.Knowledge.KnowledgeBaseID != "":
		awsCfg, err := loadAWSConfig(ctx, cfg.Knowledge.Region)
		if err != nil {
			return err
		}
		modelARN := cfg.Knowledge.ModelARN
		if modelARN == "" {
			modelARN = knowledge.DefaultModelARN(awsCfg.Region)
		}
		knowledgeSource = knowledge.NewRAGStore(
			bedrockagentruntime.NewFromConfig(awsCfg), cfg.Knowledge.KnowledgeBaseID, modelARN, logger)
	case cfg.Knowledge.Bucket != "":
		awsCfg, err := loadAWSConfig(ctx, cfg.Knowledge.Region)
		if err != nil {
			return err
		}
		knowledgeSource = knowledge.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Knowledge.Bucket, logger)
	}

	opts := review.Options{
		Knowledge:       knowledgeSource,
		KnowledgePrefix: cfg.Knowledge.Prefix,
		Logger:          logger,
	}
	if cfg.Store.Enabled {
		historyStore, err := sqlite.NewStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer historyStore.Close()
		opts.History = storeadapter.NewBridge(historyStore)
	}

	service := review.NewService(
		ghadapter.NewAppAuthenticator(appID, privateKey),
		ghadapter.NewDiffFetcher(),
		orchestrator,
		ghadapter.NewPoster(),
		opts,
	)

	checks := map[string]server.HealthCheck{
		"github_api": server.GitHubHealthCheck(&http.Client{Timeout: 3 * time.Second}),
	}
	srv := server.New(service, webhookSecret, cfg.Server.TriggerTeam, checks, logger)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.LogInfo(ctx, "webhook server listening", map[string]interface{}{"addr": addr})
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func buildGateway(ctx context.Context, cfg config.Config, logger *llmhttp.DefaultLogger) (pipeline.Gateway, error) {
	switch cfg.LLM.Provider {
	case "anthropic":
		if cfg.LLM.APIKey == "" {
			return nil, errors.New("anthropic provider requires llm.apiKey")
		}
		opts := []anthropic.Option{}
		if d := parseDuration(cfg.LLM.Timeout, 0); d > 0 {
			opts = append(opts, anthropic.WithTimeout(d))
		}
		if cfg.LLM.MaxTokens > 0 {
			opts = append(opts, anthropic.WithMaxTokens(cfg.LLM.MaxTokens))
		}
		return anthropic.NewGateway(cfg.LLM.APIKey, cfg.LLM.Model, logger, opts...), nil
	case "bedrock":
		awsCfg, err := loadAWSConfig(ctx, "")
		if err != nil {
			return nil, err
		}
		gateway := bedrock.NewGateway(bedrockruntime.NewFromConfig(awsCfg), cfg.LLM.Model, logger)
		if cfg.LLM.MaxTokens > 0 {
			gateway.SetMaxTokens(cfg.LLM.MaxTokens)
		}
		return gateway, nil
	case "static", "":
		return static.NewGateway("{}"), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

// applySecretOverrides folds secret-held LLM and knowledge settings into
// the config. The secret wins for the model id; file and environment
// values win for the API key and knowledge base id.
func applySecretOverrides(cfg config.Config, bundle secrets.Bundle) config.Config {
	if bundle.BedrockModelID != "" {
		cfg.LLM.Model = bundle.BedrockModelID
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = bundle.AnthropicAPIKey
	}
	if cfg.Knowledge.KnowledgeBaseID == "" {
		cfg.Knowledge.KnowledgeBaseID = bundle.KnowledgeBaseID
	}
	return cfg
}

func pipelineConfig(cfg config.Config) pipeline.Config {
	return pipeline.Config{
		ModelID:         cfg.LLM.Model,
		Guidelines:      cfg.Review.Guidelines,
		MaxPromptTokens: cfg.Review.MaxPromptTokens,
		MaxSnippets:     cfg.Review.MaxSnippets,
		CallTimeout:     parseDuration(cfg.LLM.Timeout, 60*time.Second),
		RunDeadline:     parseDuration(cfg.Review.RunDeadline, 10*time.Minute),
		Retry: llmhttp.RetryConfig{
			MaxAttempts:    cfg.LLM.MaxAttempts,
			InitialBackoff: parseDuration(cfg.LLM.InitialBackoff, 2*time.Second),
			MaxBackoff:     parseDuration(cfg.LLM.MaxBackoff, 30*time.Second),
			Multiplier:     cfg.LLM.BackoffMultiplier,
		},
	}
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home+"/.reviewbot")
	}
	return paths
}

// historyLister adapts the sqlite store to the CLI listing port.
type historyLister struct {
	store *sqlite.Store
}

func (h historyLister) ListRuns(ctx context.Context, limit int) ([]cli.HistoryRun, error) {
	runs, err := h.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]cli.HistoryRun, len(runs))
	for i, run := range runs {
		out[i] = cli.HistoryRun{
			RunID:      run.RunID,
			CreatedAt:  run.CreatedAt,
			Repository: run.Repository,
			PRNumber:   run.PRNumber,
			Findings:   run.Findings,
		}
	}
	return out, nil
}
