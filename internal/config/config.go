package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Reasoner   ReasonerConfig   `yaml:"reasoner" mapstructure:"reasoner"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Router     RouterConfig     `yaml:"router" mapstructure:"router"`
	Stages     StagesConfig     `yaml:"stages" mapstructure:"stages"`
	Patterns   PatternsConfig   `yaml:"patterns" mapstructure:"patterns"`
	Signals    SignalsConfig    `yaml:"signals" mapstructure:"signals"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" mapstructure:"retrieval"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina AI Reader and Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (content fallback only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ReasonerConfig selects and tunes the reasoning backend.
type ReasonerConfig struct {
	Provider         string `yaml:"provider" mapstructure:"provider"`
	MaxTokens        int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxRetries       int    `yaml:"max_retries" mapstructure:"max_retries"`
	FailureThreshold int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int    `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// IngestConfig configures article collection and deduplication.
type IngestConfig struct {
	RecencyWindow     time.Duration `yaml:"recency_window" mapstructure:"recency_window"`
	PerSourceCap      int           `yaml:"per_source_cap" mapstructure:"per_source_cap"`
	DedupWindow       time.Duration `yaml:"dedup_window" mapstructure:"dedup_window"`
	ClockSkew         time.Duration `yaml:"clock_skew" mapstructure:"clock_skew"`
	QueryConcurrency  int           `yaml:"query_concurrency" mapstructure:"query_concurrency"`
	QueryTimeoutSecs  int           `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
	RateLimitPerSec   float64       `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	MaxQueries        int           `yaml:"max_queries" mapstructure:"max_queries"`
	Sources           []string      `yaml:"sources" mapstructure:"sources"`
	EnrichContent     bool          `yaml:"enrich_content" mapstructure:"enrich_content"`
	EnrichConcurrency int           `yaml:"enrich_concurrency" mapstructure:"enrich_concurrency"`
	MaxContentChars   int           `yaml:"max_content_chars" mapstructure:"max_content_chars"`
}

// RouterConfig configures relevance routing.
type RouterConfig struct {
	PerStageCap           int     `yaml:"per_stage_cap" mapstructure:"per_stage_cap"`
	CrossCuttingMinimum   int     `yaml:"cross_cutting_minimum" mapstructure:"cross_cutting_minimum"`
	CrossCuttingThreshold float64 `yaml:"cross_cutting_threshold" mapstructure:"cross_cutting_threshold"`
}

// StagesConfig configures the stage analyzer fan-out.
type StagesConfig struct {
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Stagger     time.Duration `yaml:"stagger" mapstructure:"stagger"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PatternsConfig configures pattern extraction.
type PatternsConfig struct {
	MinFacts          int           `yaml:"min_facts" mapstructure:"min_facts"`
	TargetConcurrency int           `yaml:"target_concurrency" mapstructure:"target_concurrency"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens         int           `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SignalsConfig configures the dedup/strengthening engine.
type SignalsConfig struct {
	SimilarityThreshold float64       `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	PrefixMinChars      int           `yaml:"prefix_min_chars" mapstructure:"prefix_min_chars"`
	ReplayWindow        time.Duration `yaml:"replay_window" mapstructure:"replay_window"`
	MaxEvidence         int           `yaml:"max_evidence" mapstructure:"max_evidence"`
	MaxNewEvidence      int           `yaml:"max_new_evidence" mapstructure:"max_new_evidence"`
	ConfidenceStep      int           `yaml:"confidence_step" mapstructure:"confidence_step"`
	ConfidenceCap       int           `yaml:"confidence_cap" mapstructure:"confidence_cap"`
}

// RetrievalConfig holds composite scorer weights.
type RetrievalConfig struct {
	Weights          RetrievalWeights `yaml:"weights" mapstructure:"weights"`
	RecencyDecayDays float64          `yaml:"recency_decay_days" mapstructure:"recency_decay_days"`
	ReasonThreshold  float64          `yaml:"reason_threshold" mapstructure:"reason_threshold"`
	DefaultLimit     int              `yaml:"default_limit" mapstructure:"default_limit"`
}

// RetrievalWeights are the composite score coefficients; they sum to 1.
type RetrievalWeights struct {
	Similarity   float64 `yaml:"similarity" mapstructure:"similarity"`
	Salience     float64 `yaml:"salience" mapstructure:"salience"`
	Recency      float64 `yaml:"recency" mapstructure:"recency"`
	Relationship float64 `yaml:"relationship" mapstructure:"relationship"`
	Execution    float64 `yaml:"execution" mapstructure:"execution"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Backend  string        `yaml:"backend" mapstructure:"backend"`
	RedisURL string        `yaml:"redis_url" mapstructure:"redis_url"`
	OrgTTL   time.Duration `yaml:"org_ttl" mapstructure:"org_ttl"`
}

// TemporalConfig configures the durable workflow worker.
type TemporalConfig struct {
	HostPort    string `yaml:"host_port" mapstructure:"host_port"`
	Namespace   string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue   string `yaml:"task_queue" mapstructure:"task_queue"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP trigger surface.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic  map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Jina       JinaPricing             `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityPricing       `yaml:"perplexity" mapstructure:"perplexity"`
	Firecrawl  FirecrawlPricing        `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// JinaPricing holds Jina Reader pricing.
type JinaPricing struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// PerplexityPricing holds Perplexity pricing.
type PerplexityPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// FirecrawlPricing holds Firecrawl pricing.
type FirecrawlPricing struct {
	PlanMonthly     float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	CreditsIncluded float64 `yaml:"credits_included" mapstructure:"credits_included"`
}

// MonitoringConfig configures run health alerts.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SIGNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")

	v.SetDefault("reasoner.provider", "anthropic")
	v.SetDefault("reasoner.max_tokens", 4096)
	v.SetDefault("reasoner.max_retries", 2)
	v.SetDefault("reasoner.failure_threshold", 5)
	v.SetDefault("reasoner.reset_timeout_secs", 60)

	v.SetDefault("ingest.recency_window", "48h")
	v.SetDefault("ingest.per_source_cap", 15)
	v.SetDefault("ingest.dedup_window", "168h")
	v.SetDefault("ingest.clock_skew", "1h")
	v.SetDefault("ingest.query_concurrency", 5)
	v.SetDefault("ingest.query_timeout_secs", 15)
	v.SetDefault("ingest.rate_limit_per_sec", 5.0)
	v.SetDefault("ingest.max_queries", 20)
	v.SetDefault("ingest.enrich_content", true)
	v.SetDefault("ingest.enrich_concurrency", 5)
	v.SetDefault("ingest.max_content_chars", 6000)

	v.SetDefault("router.per_stage_cap", 25)
	v.SetDefault("router.cross_cutting_minimum", 3)
	v.SetDefault("router.cross_cutting_threshold", 0.5)

	v.SetDefault("stages.concurrency", 5)
	v.SetDefault("stages.timeout", "60s")
	v.SetDefault("stages.stagger", "0s")
	v.SetDefault("stages.max_tokens", 2048)

	v.SetDefault("patterns.min_facts", 2)
	v.SetDefault("patterns.target_concurrency", 4)
	v.SetDefault("patterns.timeout", "60s")
	v.SetDefault("patterns.max_tokens", 2048)

	v.SetDefault("signals.similarity_threshold", 0.6)
	v.SetDefault("signals.prefix_min_chars", 12)
	v.SetDefault("signals.replay_window", "2m")
	v.SetDefault("signals.max_evidence", 10)
	v.SetDefault("signals.max_new_evidence", 2)
	v.SetDefault("signals.confidence_step", 5)
	v.SetDefault("signals.confidence_cap", 95)

	v.SetDefault("retrieval.weights.similarity", 0.4)
	v.SetDefault("retrieval.weights.salience", 0.2)
	v.SetDefault("retrieval.weights.recency", 0.1)
	v.SetDefault("retrieval.weights.relationship", 0.1)
	v.SetDefault("retrieval.weights.execution", 0.2)
	v.SetDefault("retrieval.recency_decay_days", 90.0)
	v.SetDefault("retrieval.reason_threshold", 0.7)
	v.SetDefault("retrieval.default_limit", 20)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.org_ttl", "10m")

	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.cost_threshold_usd", 50.0)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "signal-pipeline")
	v.SetDefault("temporal.concurrency", 4)

	v.SetDefault("pricing.anthropic.claude-sonnet-4-5-20250929.input", 3.0)
	v.SetDefault("pricing.anthropic.claude-sonnet-4-5-20250929.output", 15.0)
	v.SetDefault("pricing.anthropic.claude-sonnet-4-5-20250929.cache_write_mul", 1.25)
	v.SetDefault("pricing.anthropic.claude-sonnet-4-5-20250929.cache_read_mul", 0.1)
	v.SetDefault("pricing.jina.per_mtok", 0.02)
	v.SetDefault("pricing.perplexity.per_query", 0.005)
	v.SetDefault("pricing.firecrawl.plan_monthly", 19.00)
	v.SetDefault("pricing.firecrawl.credits_included", 3000)
}

// Validate checks that the configuration is usable for the given command mode.
// Modes: "run", "serve", "worker", "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "serve", "worker":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateReasoner()...)
		if c.Jina.Key == "" {
			errs = append(errs, "jina.key is required")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if mode == "worker" && c.Temporal.TaskQueue == "" {
			errs = append(errs, "temporal.task_queue is required")
		}
	case "store":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	errs = append(errs, c.validateBounds()...)

	if len(errs) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	return errs
}

func (c *Config) validateReasoner() []string {
	switch c.Reasoner.Provider {
	case "anthropic", "":
		if c.Anthropic.Key == "" {
			return []string{"anthropic.key is required"}
		}
	case "perplexity":
		if c.Perplexity.Key == "" {
			return []string{"perplexity.key is required"}
		}
	default:
		return []string{fmt.Sprintf("reasoner.provider %q is not supported", c.Reasoner.Provider)}
	}
	return nil
}

func (c *Config) validateBounds() []string {
	var errs []string
	if c.Stages.Concurrency < 1 || c.Stages.Concurrency > 20 {
		errs = append(errs, "stages.concurrency must be between 1 and 20")
	}
	if c.Ingest.PerSourceCap < 1 {
		errs = append(errs, "ingest.per_source_cap must be >= 1")
	}
	if c.Router.PerStageCap < 1 {
		errs = append(errs, "router.per_stage_cap must be >= 1")
	}
	if c.Signals.SimilarityThreshold <= 0 || c.Signals.SimilarityThreshold > 1 {
		errs = append(errs, "signals.similarity_threshold must be in (0, 1]")
	}
	w := c.Retrieval.Weights
	if w.Similarity < 0 || w.Salience < 0 || w.Recency < 0 || w.Relationship < 0 || w.Execution < 0 {
		errs = append(errs, "retrieval.weights values must be >= 0")
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		errs = append(errs, "cache.redis_url is required for the redis backend")
	}
	return errs
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
