// Package config loads the single configuration struct built once at startup
// and passed explicitly into every component.
//
// Values are layered with viper: defaults, then an optional file (yaml,
// toml or json by extension), then REVIEWMESH_* environment variables where
// nested keys use underscores (REVIEWMESH_CACHE_BACKEND=redis).
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/reviewmesh/logging"
)

// ErrInvalid marks configuration values outside their allowed set.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "REVIEWMESH"

// Config is the complete runtime configuration.
type Config struct {
	Generation   GenerationConfig   `mapstructure:"generation" yaml:"generation" json:"generation"`
	Agents       AgentsConfig       `mapstructure:"agents" yaml:"agents" json:"agents"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator" json:"orchestrator"`
	Cache        CacheConfig        `mapstructure:"cache" yaml:"cache" json:"cache"`
	Store        StoreConfig        `mapstructure:"store" yaml:"store" json:"store"`
	Retrieval    RetrievalConfig    `mapstructure:"retrieval" yaml:"retrieval" json:"retrieval"`
	Queue        QueueConfig        `mapstructure:"queue" yaml:"queue" json:"queue"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging" json:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// GenerationConfig selects the text-generation backend.
type GenerationConfig struct {
	// Backend is none, mock, anthropic, openai or ollama.
	Backend          string  `mapstructure:"backend" yaml:"backend" json:"backend"`
	Model            string  `mapstructure:"model" yaml:"model" json:"model"`
	Adapter          string  `mapstructure:"adapter" yaml:"adapter" json:"adapter"`
	APIKey           string  `mapstructure:"api_key" yaml:"-" json:"-"`
	BaseURL          string  `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	MaxTokens        int     `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	BatchConcurrency int     `mapstructure:"batch_concurrency" yaml:"batch_concurrency" json:"batch_concurrency"`
	// MaxCalls caps generation calls per process; zero is unlimited.
	MaxCalls int `mapstructure:"max_calls" yaml:"max_calls" json:"max_calls"`
}

// AgentsConfig selects agents and which of them use generation.
type AgentsConfig struct {
	// Enabled lists agent ids in run order.
	Enabled []string `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	// Generative lists the enabled agents wrapped with the generation backend.
	Generative []string `mapstructure:"generative" yaml:"generative" json:"generative"`
}

// OrchestratorConfig selects the execution mode.
type OrchestratorConfig struct {
	// Mode is sequential or batched.
	Mode string `mapstructure:"mode" yaml:"mode" json:"mode"`
}

// CacheConfig selects the generation cache.
type CacheConfig struct {
	// Backend is none, lru or redis.
	Backend  string        `mapstructure:"backend" yaml:"backend" json:"backend"`
	Capacity int           `mapstructure:"capacity" yaml:"capacity" json:"capacity"`
	RedisURL string        `mapstructure:"redis_url" yaml:"redis_url" json:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
}

// StoreConfig selects the review store.
type StoreConfig struct {
	// Driver is memory, sqlite or postgres.
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
}

// RetrievalConfig selects repository context retrieval.
type RetrievalConfig struct {
	// Backend is none, keyword or embedding.
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"`
	// Paths are files or directories indexed at startup.
	Paths          []string `mapstructure:"paths" yaml:"paths" json:"paths"`
	Limit          int      `mapstructure:"limit" yaml:"limit" json:"limit"`
	EmbeddingModel string   `mapstructure:"embedding_model" yaml:"embedding_model" json:"embedding_model"`
	OllamaURL      string   `mapstructure:"ollama_url" yaml:"ollama_url" json:"ollama_url"`
}

// QueueConfig bounds the job queue.
type QueueConfig struct {
	MaxPending int `mapstructure:"max_pending" yaml:"max_pending" json:"max_pending"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr" json:"addr"`
}

// Allowed enum values.
var (
	GenerationBackends = []string{"none", "mock", "anthropic", "openai", "ollama"}
	CacheBackends      = []string{"none", "lru", "redis"}
	StoreDrivers       = []string{"memory", "sqlite", "postgres"}
	RetrievalBackends  = []string{"none", "keyword", "embedding"}
	OrchestratorModes  = []string{"sequential", "batched"}
	LogFormats         = []string{"json", "text"}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("generation.backend", "none")
	v.SetDefault("generation.model", "")
	v.SetDefault("generation.adapter", "")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.max_tokens", 1024)
	v.SetDefault("generation.temperature", 0.2)
	v.SetDefault("generation.batch_concurrency", 4)
	v.SetDefault("generation.max_calls", 0)
	v.SetDefault("agents.enabled", []string{"code_reviewer", "security_reviewer", "style_reviewer", "critic"})
	v.SetDefault("agents.generative", []string{})
	v.SetDefault("orchestrator.mode", "sequential")
	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.capacity", 256)
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("retrieval.backend", "none")
	v.SetDefault("retrieval.paths", []string{})
	v.SetDefault("retrieval.limit", 5)
	v.SetDefault("retrieval.embedding_model", "nomic-embed-text")
	v.SetDefault("retrieval.ollama_url", "")
	v.SetDefault("queue.max_pending", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
}

// Default returns the configuration with no file or environment applied.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load reads path (optional) and the environment, then validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Generation.Backend = strings.ToLower(strings.TrimSpace(c.Generation.Backend))
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Retrieval.Backend = strings.ToLower(strings.TrimSpace(c.Retrieval.Backend))
	c.Orchestrator.Mode = strings.ToLower(strings.TrimSpace(c.Orchestrator.Mode))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// Validate rejects unknown enum values and negative bounds.
func (c Config) Validate() error {
	var errs []error
	oneOf := func(field, value string, allowed []string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%w: %s %q (want one of %s)", ErrInvalid, field, value, strings.Join(allowed, ", ")))
		}
	}
	nonNegative := func(field string, value int) {
		if value < 0 {
			errs = append(errs, fmt.Errorf("%w: %s must not be negative", ErrInvalid, field))
		}
	}

	oneOf("generation.backend", c.Generation.Backend, GenerationBackends)
	oneOf("cache.backend", c.Cache.Backend, CacheBackends)
	oneOf("store.driver", c.Store.Driver, StoreDrivers)
	oneOf("retrieval.backend", c.Retrieval.Backend, RetrievalBackends)
	oneOf("orchestrator.mode", c.Orchestrator.Mode, OrchestratorModes)
	oneOf("logging.format", c.Logging.Format, LogFormats)
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: logging.level: %v", ErrInvalid, err))
	}

	nonNegative("generation.max_tokens", c.Generation.MaxTokens)
	nonNegative("generation.batch_concurrency", c.Generation.BatchConcurrency)
	nonNegative("generation.max_calls", c.Generation.MaxCalls)
	nonNegative("cache.capacity", c.Cache.Capacity)
	nonNegative("retrieval.limit", c.Retrieval.Limit)
	nonNegative("queue.max_pending", c.Queue.MaxPending)

	if c.Store.Driver == "sqlite" && c.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("%w: store.dsn is required for sqlite", ErrInvalid))
	}

	return errors.Join(errs...)
}
