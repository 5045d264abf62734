package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "none", cfg.Generation.Backend)
	assert.Equal(t, []string{"code_reviewer", "security_reviewer", "style_reviewer", "critic"}, cfg.Agents.Enabled)
	assert.Equal(t, "sequential", cfg.Orchestrator.Mode)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Retrieval.Limit)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "reviewmesh.yaml", `
generation:
  backend: Anthropic
  model: claude-3-5-haiku-latest
  batch_concurrency: 2
agents:
  enabled: [security_reviewer, critic]
  generative: [security_reviewer]
orchestrator:
  mode: batched
cache:
  backend: lru
  capacity: 10
  ttl: 30m
store:
  driver: sqlite
  dsn: /tmp/reviews.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Generation.Backend)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.Generation.Model)
	assert.Equal(t, 2, cfg.Generation.BatchConcurrency)
	assert.Equal(t, []string{"security_reviewer", "critic"}, cfg.Agents.Enabled)
	assert.Equal(t, []string{"security_reviewer"}, cfg.Agents.Generative)
	assert.Equal(t, "batched", cfg.Orchestrator.Mode)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	// Untouched keys keep defaults.
	assert.Equal(t, 5, cfg.Retrieval.Limit)
}

func TestLoad_TOMLFile(t *testing.T) {
	path := writeFile(t, "reviewmesh.toml", `
[cache]
backend = "redis"
redis_url = "redis://cache:6379/1"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis://cache:6379/1", cfg.Cache.RedisURL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "reviewmesh.yaml", "cache:\n  backend: lru\n")
	t.Setenv("REVIEWMESH_CACHE_BACKEND", "none")
	t.Setenv("REVIEWMESH_QUEUE_MAX_PENDING", "7")
	t.Setenv("REVIEWMESH_CACHE_TTL", "5m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, 7, cfg.Queue.MaxPending)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"generation backend", func(c *Config) { c.Generation.Backend = "gpt" }},
		{"cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"store driver", func(c *Config) { c.Store.Driver = "mongo" }},
		{"retrieval backend", func(c *Config) { c.Retrieval.Backend = "chroma" }},
		{"mode", func(c *Config) { c.Orchestrator.Mode = "parallel" }},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"negative pending", func(c *Config) { c.Queue.MaxPending = -1 }},
		{"sqlite without dsn", func(c *Config) { c.Store.Driver = "sqlite" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLoad_InvalidFromEnv(t *testing.T) {
	t.Setenv("REVIEWMESH_ORCHESTRATOR_MODE", "swarm")
	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalid)
}
