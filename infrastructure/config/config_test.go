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

func TestDefaults(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Minute, cfg.Cache.ContextTTL)
	assert.Equal(t, 2, cfg.Pipeline.DefaultDepth)
	assert.Equal(t, 10, cfg.Pipeline.HistoryTurns)
	assert.Equal(t, 20, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, 2048, cfg.LLM.EnrichmentMaxTokens)
	assert.Zero(t, cfg.Server.WriteTimeout)
}

func TestLoadFromLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: test
cache:
  provider: memory
  context_ttl: 90s
pipeline:
  default_depth: 3
  enrichment_timeout: 5s
`), 0o600))

	t.Setenv("NEO4J_URI", "neo4j://graph:7687")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, Test, cfg.Environment)
	assert.Equal(t, "memory", cfg.Cache.Provider)
	assert.Equal(t, 90*time.Second, cfg.Cache.ContextTTL)
	assert.Equal(t, 3, cfg.Pipeline.DefaultDepth)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.EnrichmentTimeout)
	assert.Equal(t, "neo4j://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"production requires jwt secret", func(c *Config) { c.Environment = Production }, true},
		{"production with secret", func(c *Config) { c.Environment = Production; c.Auth.JWTSecret = "s" }, false},
		{"unknown environment", func(c *Config) { c.Environment = "staging-ish" }, true},
		{"unknown cache provider", func(c *Config) { c.Cache.Provider = "memcached" }, true},
		{"redis without url", func(c *Config) { c.Cache.RedisURL = "" }, true},
		{"depth out of range", func(c *Config) { c.Pipeline.DefaultDepth = 4 }, true},
		{"zero event buffer", func(c *Config) { c.Pipeline.EventBuffer = 0 }, true},
		{"rate limit without window", func(c *Config) { c.RateLimit.Window = 0 }, true},
		{"missing api key is allowed", func(c *Config) { c.LLM.APIKey = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestWatcherDisabledOutsideDevelopment(t *testing.T) {
	cfg := Default()
	cfg.Environment = Test

	w, err := NewWatcher("config.yaml", cfg, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	assert.Nil(t, w.watcher)
	assert.Same(t, cfg, w.Current())
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, cfg, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	changed := make(chan string, 1)
	w.OnChange(func(c *Config) {
		select {
		case changed <- c.Logging.Level:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))

	select {
	case level := <-changed:
		assert.Equal(t, "debug", level)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
}

func TestDevelopmentSecretFallback(t *testing.T) {
	t.Setenv("ENVIRONMENT", Development)
	t.Setenv("JWT_SECRET", "")

	cfg, err := LoadFrom("")
	require.NoError(t, err)
	assert.Equal(t, DevelopmentJWTSecret, cfg.Auth.JWTSecret)

	t.Setenv("JWT_SECRET", "explicit")
	cfg, err = LoadFrom("")
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.Auth.JWTSecret)
}
