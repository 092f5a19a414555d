// Package config loads application configuration from config.yaml and
// ORGSCOPE_* environment variables, and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	SerpAPI   SerpAPIConfig   `yaml:"serpapi" mapstructure:"serpapi"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// Path is the SQLite database file when Driver is "sqlite".
	Path string `yaml:"path" mapstructure:"path"`
}

// SerpAPIConfig holds SerpAPI (Google engine) settings.
type SerpAPIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Results is the number of organic results requested per query.
	Results int `yaml:"results" mapstructure:"results"`
	// HL and GL set the Google interface language and country.
	HL string `yaml:"hl" mapstructure:"hl"`
	GL string `yaml:"gl" mapstructure:"gl"`
}

// JinaConfig holds Jina AI Reader and Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// AnthropicConfig holds Anthropic API settings for fact extraction.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig configures the multi-provider search stage.
type SearchConfig struct {
	// Providers are tried in this fixed order; result ordering follows it.
	Providers []string `yaml:"providers" mapstructure:"providers"`
	// MaxResults caps the deduplicated result list handed to the fetcher.
	MaxResults int `yaml:"max_results" mapstructure:"max_results"`
	// ProviderTimeoutSecs bounds each provider call.
	ProviderTimeoutSecs int `yaml:"provider_timeout_secs" mapstructure:"provider_timeout_secs"`
	// RatePerSec throttles calls per provider.
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	// NewsFeed toggles the dedicated news feed.
	NewsFeed bool `yaml:"news_feed" mapstructure:"news_feed"`
	// NewsProvider selects the feed backend: "googlenews" (RSS) or
	// "serpapi" (Google News vertical).
	NewsProvider string `yaml:"news_provider" mapstructure:"news_provider"`
}

// FetchConfig configures the page fetch stage.
type FetchConfig struct {
	TimeoutSecs  int   `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	Concurrency  int   `yaml:"concurrency" mapstructure:"concurrency"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ExtractConfig configures the fact extraction stage.
type ExtractConfig struct {
	// BatchChars caps the total document characters per model call.
	BatchChars int `yaml:"batch_chars" mapstructure:"batch_chars"`
	// Concurrency bounds parallel extraction batches.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// BatchTimeoutSecs bounds each extraction call.
	BatchTimeoutSecs int `yaml:"batch_timeout_secs" mapstructure:"batch_timeout_secs"`
	// SchemaPath optionally overrides the embedded field schema.
	SchemaPath string `yaml:"schema_path" mapstructure:"schema_path"`
}

// ReconcileConfig configures the reconciliation stage.
type ReconcileConfig struct {
	// ConfidenceFloor rejects candidates below it outright.
	ConfidenceFloor float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`
}

// PipelineConfig configures run-level orchestration.
type PipelineConfig struct {
	// DeadlineSecs bounds a whole aggregation run.
	DeadlineSecs int `yaml:"deadline_secs" mapstructure:"deadline_secs"`
	// MaxDocuments caps how many search results are fetched.
	MaxDocuments int `yaml:"max_documents" mapstructure:"max_documents"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ORGSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "orgscope.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("serpapi.results", 10)
	v.SetDefault("serpapi.hl", "en")
	v.SetDefault("serpapi.gl", "us")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("search.providers", []string{"serpapi", "jina"})
	v.SetDefault("search.max_results", 12)
	v.SetDefault("search.provider_timeout_secs", 15)
	v.SetDefault("search.rate_per_sec", 2.0)
	v.SetDefault("search.news_feed", true)
	v.SetDefault("search.news_provider", "googlenews")
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.max_body_bytes", 2<<20)
	v.SetDefault("fetch.concurrency", 6)
	v.SetDefault("fetch.user_agent", "orgscope/1.0 (+https://github.com/civicgraph/orgscope)")
	v.SetDefault("extract.batch_chars", 24000)
	v.SetDefault("extract.concurrency", 2)
	v.SetDefault("extract.batch_timeout_secs", 60)
	v.SetDefault("reconcile.confidence_floor", 0.3)
	v.SetDefault("pipeline.deadline_secs", 60)
	v.SetDefault("pipeline.max_documents", 12)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
