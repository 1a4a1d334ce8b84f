package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.Reasoner.Provider)
	assert.Equal(t, 48*time.Hour, cfg.Ingest.RecencyWindow)
	assert.Equal(t, 15, cfg.Ingest.PerSourceCap)
	assert.Equal(t, 7*24*time.Hour, cfg.Ingest.DedupWindow)
	assert.Equal(t, time.Hour, cfg.Ingest.ClockSkew)
	assert.Equal(t, 5, cfg.Ingest.QueryConcurrency)
	assert.Equal(t, 25, cfg.Router.PerStageCap)
	assert.Equal(t, 3, cfg.Router.CrossCuttingMinimum)
	assert.InDelta(t, 0.5, cfg.Router.CrossCuttingThreshold, 0.001)
	assert.Equal(t, 5, cfg.Stages.Concurrency)
	assert.Equal(t, 60*time.Second, cfg.Stages.Timeout)
	assert.Equal(t, 2, cfg.Patterns.MinFacts)
	assert.InDelta(t, 0.6, cfg.Signals.SimilarityThreshold, 0.001)
	assert.Equal(t, 2*time.Minute, cfg.Signals.ReplayWindow)
	assert.Equal(t, 10, cfg.Signals.MaxEvidence)
	assert.Equal(t, 95, cfg.Signals.ConfidenceCap)
	assert.InDelta(t, 0.4, cfg.Retrieval.Weights.Similarity, 0.001)
	assert.InDelta(t, 0.2, cfg.Retrieval.Weights.Execution, 0.001)
	assert.InDelta(t, 90.0, cfg.Retrieval.RecencyDecayDays, 0.001)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Cache.OrgTTL)
	assert.Equal(t, "signal-pipeline", cfg.Temporal.TaskQueue)
	assert.Equal(t, "https://s.jina.ai", cfg.Jina.SearchBaseURL)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Contains(t, cfg.Pricing.Anthropic, "claude-sonnet-4-5-20250929")
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
server:
  port: 9090
ingest:
  recency_window: 24h
  per_source_cap: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Ingest.RecencyWindow)
	assert.Equal(t, 4, cfg.Ingest.PerSourceCap)
	// Defaults still apply for unset values
	assert.Equal(t, 25, cfg.Router.PerStageCap)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SIGNAL_STORE_DRIVER", "postgres")
	t.Setenv("SIGNAL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SIGNAL_SERVER_PORT", "3000")
	t.Setenv("SIGNAL_REASONER_PROVIDER", "perplexity")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "perplexity", cfg.Reasoner.Provider)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with bounds populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Reasoner.Provider = "anthropic"
	cfg.Stages.Concurrency = 5
	cfg.Ingest.PerSourceCap = 15
	cfg.Router.PerStageCap = 25
	cfg.Signals.SimilarityThreshold = 0.6
	cfg.Server.Port = 8080
	cfg.Temporal.TaskQueue = "signal-pipeline"
	return cfg
}

func TestValidateRun_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://localhost/test"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Jina.Key = "jina-key"

	assert.NoError(t, cfg.Validate("run"))
	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("worker"))
}

func TestValidateRun_MissingFields(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "jina.key is required")
}

func TestValidatePerplexityProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"
	cfg.Jina.Key = "jina-key"
	cfg.Reasoner.Provider = "perplexity"

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "perplexity.key is required")

	cfg.Perplexity.Key = "pplx"
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateStore_SQLiteNeedsNoURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"

	assert.NoError(t, cfg.Validate("store"))
}

func TestValidateStore_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"
	cfg.Anthropic.Key = "k"
	cfg.Jina.Key = "j"
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"

	cfg.Stages.Concurrency = 0
	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stages.concurrency must be between 1 and 20")
	cfg.Stages.Concurrency = 5

	cfg.Signals.SimilarityThreshold = 1.5
	err = cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signals.similarity_threshold")
	cfg.Signals.SimilarityThreshold = 0.6

	cfg.Retrieval.Weights.Recency = -0.1
	err = cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval.weights values must be >= 0")
	cfg.Retrieval.Weights.Recency = 0.1

	cfg.Cache.Backend = "redis"
	err = cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.redis_url")

	cfg.Cache.RedisURL = "redis://localhost:6379/0"
	assert.NoError(t, cfg.Validate("store"))
}
