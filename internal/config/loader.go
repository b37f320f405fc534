package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files and environment
// variables. Environment variables use the REVIEWBOT_ prefix with
// underscores for nesting, e.g. REVIEWBOT_LLM_PROVIDER.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "reviewbot"
	}
	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "REVIEWBOT"
	}

	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	setDefaults(v)

	if configFile := locateConfigFile(name, opts.ConfigPaths); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return expandEnvVars(cfg), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listenAddr", ":8080")
	v.SetDefault("server.triggerTeam", "ai-review-bots")

	v.SetDefault("llm.provider", "static")
	v.SetDefault("llm.maxTokens", 4000)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.maxAttempts", 3)
	v.SetDefault("llm.initialBackoff", "2s")
	v.SetDefault("llm.maxBackoff", "30s")
	v.SetDefault("llm.backoffMultiplier", 2.0)

	v.SetDefault("review.maxPromptTokens", 16000)
	v.SetDefault("review.maxSnippets", 6)
	v.SetDefault("review.runDeadline", "10m")

	v.SetDefault("git.repositoryDir", ".")

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.path", defaultStorePath())

	v.SetDefault("observability.logging.level", "info")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "reviewbot.db"
	}
	return filepath.Join(home, ".reviewbot", "history.db")
}

func locateConfigFile(name string, paths []string) string {
	searchPaths := append([]string{}, paths...)
	searchPaths = append(searchPaths, ".")
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name+".yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// expandEnvVars expands ${VAR} and $VAR references in the string-valued
// settings that commonly carry secrets or machine-specific paths.
func expandEnvVars(cfg Config) Config {
	cfg.GitHub.PrivateKeyPath = expandEnvString(cfg.GitHub.PrivateKeyPath)
	cfg.GitHub.WebhookSecret = expandEnvString(cfg.GitHub.WebhookSecret)
	cfg.LLM.APIKey = expandEnvString(cfg.LLM.APIKey)
	cfg.LLM.Model = expandEnvString(cfg.LLM.Model)
	cfg.Knowledge.Bucket = expandEnvString(cfg.Knowledge.Bucket)
	cfg.Knowledge.Prefix = expandEnvString(cfg.Knowledge.Prefix)
	cfg.Knowledge.KnowledgeBaseID = expandEnvString(cfg.Knowledge.KnowledgeBaseID)
	cfg.Secrets.Name = expandEnvString(cfg.Secrets.Name)
	cfg.Git.RepositoryDir = expandEnvString(cfg.Git.RepositoryDir)
	cfg.Store.Path = expandEnvString(cfg.Store.Path)
	return cfg
}

var (
	bracedVarPattern = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	bareVarPattern   = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
)

func expandEnvString(s string) string {
	if s == "" {
		return s
	}
	s = bracedVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
	s = bareVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[1:]); val != "" {
			return val
		}
		return match
	})
	return s
}
