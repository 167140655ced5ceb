// Package config loads application configuration.
//
// Values are layered, lowest priority first: built-in defaults, an optional
// YAML file named by CONFIG_FILE, then environment variables. The result is
// validated before use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// DevelopmentJWTSecret signs sessions outside production when JWT_SECRET is
// unset. Production refuses to start without an explicit secret.
const DevelopmentJWTSecret = "development-secret-change-in-production"

// Config holds all application configuration
type Config struct {
	Environment string `yaml:"environment"`

	Server    ServerConfig    `yaml:"server"`
	Neo4j     Neo4jConfig     `yaml:"neo4j"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Cache     CacheConfig     `yaml:"cache"`
	LLM       LLMConfig       `yaml:"llm"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig configures the HTTP listener. WriteTimeout stays zero by
// default because chat responses are long-lived event streams.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// CacheConfig selects the context cache backend ("redis" or "memory").
type CacheConfig struct {
	Provider   string        `yaml:"provider"`
	RedisURL   string        `yaml:"redis_url"`
	ContextTTL time.Duration `yaml:"context_ttl"`
	MaxItems   int           `yaml:"max_items"`
}

// LLMConfig configures the text generation provider. APIKey may be empty at
// startup; requests fail with a configuration error until it is set.
type LLMConfig struct {
	APIKey              string        `yaml:"api_key"`
	BaseURL             string        `yaml:"base_url"`
	Model               string        `yaml:"model"`
	MaxTokens           int           `yaml:"max_tokens"`
	EnrichmentMaxTokens int           `yaml:"enrichment_max_tokens"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	Breaker             BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MaxRequests  uint32        `yaml:"max_requests"`
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	FailureRatio float64       `yaml:"failure_ratio"`
	MinRequests  uint32        `yaml:"min_requests"`
}

// PipelineConfig bounds the chat pipeline. The streaming call itself has no
// deadline unless StreamTimeout is set.
type PipelineConfig struct {
	DefaultDepth      int           `yaml:"default_depth"`
	HistoryTurns      int           `yaml:"history_turns"`
	ContextTimeout    time.Duration `yaml:"context_timeout"`
	EnrichmentTimeout time.Duration `yaml:"enrichment_timeout"`
	StreamTimeout     time.Duration `yaml:"stream_timeout"`
	EventBuffer       int           `yaml:"event_buffer"`
}

type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	JWTIssuer  string        `yaml:"jwt_issuer"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	CookieName string        `yaml:"cookie_name"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "context_graph",
			Collection: "conversations",
		},
		Cache: CacheConfig{
			Provider:   "redis",
			RedisURL:   "redis://localhost:6379",
			ContextTTL: 5 * time.Minute,
			MaxItems:   10000,
		},
		LLM: LLMConfig{
			BaseURL:             "https://api.anthropic.com/v1",
			Model:               "claude-sonnet-4-5-20250929",
			MaxTokens:           4096,
			EnrichmentMaxTokens: 2048,
			RequestTimeout:      120 * time.Second,
			Breaker: BreakerConfig{
				Enabled:      true,
				MaxRequests:  1,
				Interval:     60 * time.Second,
				Timeout:      30 * time.Second,
				FailureRatio: 0.6,
				MinRequests:  5,
			},
		},
		Pipeline: PipelineConfig{
			DefaultDepth:      2,
			HistoryTurns:      10,
			ContextTimeout:    10 * time.Second,
			EnrichmentTimeout: 20 * time.Second,
			EventBuffer:       32,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 20,
			Window:   60 * time.Second,
		},
		Auth: AuthConfig{
			JWTIssuer:  "context-graph-ai",
			SessionTTL: 7 * 24 * time.Hour,
			CookieName: "session",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{
			ServiceName: "context-graph-ai",
			Endpoint:    "localhost:4317",
			SampleRate:  1.0,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by CONFIG_FILE and the environment.
func LoadConfig() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom is LoadConfig with an explicit YAML path. An empty path skips the
// file layer.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = DevelopmentJWTSecret
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.Server.Address = getEnv("SERVER_ADDRESS", c.Server.Address)

	c.Neo4j.URI = getEnv("NEO4J_URI", c.Neo4j.URI)
	c.Neo4j.Username = getEnv("NEO4J_USER", c.Neo4j.Username)
	c.Neo4j.Password = getEnv("NEO4J_PASSWORD", c.Neo4j.Password)
	c.Neo4j.Database = getEnv("NEO4J_DATABASE", c.Neo4j.Database)

	c.Mongo.URI = getEnv("MONGODB_URI", c.Mongo.URI)
	c.Mongo.Database = getEnv("MONGODB_DATABASE", c.Mongo.Database)

	c.Cache.Provider = getEnv("CACHE_PROVIDER", c.Cache.Provider)
	c.Cache.RedisURL = getEnv("REDIS_URL", c.Cache.RedisURL)
	c.Cache.ContextTTL = getEnvDuration("CONTEXT_CACHE_TTL", c.Cache.ContextTTL)

	c.LLM.APIKey = getEnv("ANTHROPIC_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("ANTHROPIC_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("ANTHROPIC_MODEL", c.LLM.Model)
	c.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)

	c.Pipeline.ContextTimeout = getEnvDuration("CONTEXT_TIMEOUT", c.Pipeline.ContextTimeout)
	c.Pipeline.EnrichmentTimeout = getEnvDuration("ENRICHMENT_TIMEOUT", c.Pipeline.EnrichmentTimeout)
	c.Pipeline.StreamTimeout = getEnvDuration("STREAM_TIMEOUT", c.Pipeline.StreamTimeout)

	c.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.Requests = getEnvInt("RATE_LIMIT_REQUESTS", c.RateLimit.Requests)
	c.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimit.Window)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTIssuer = getEnv("JWT_ISSUER", c.Auth.JWTIssuer)

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.CORS.AllowedOrigins = splitAndTrim(origins)
	}

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Metrics.Enabled = getEnvBool("ENABLE_METRICS", c.Metrics.Enabled)
	c.Tracing.Enabled = getEnvBool("ENABLE_TRACING", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.Environment {
	case Development, Production, Test:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.Neo4j.URI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		return fmt.Errorf("MONGODB_URI and MONGODB_DATABASE are required")
	}
	switch c.Cache.Provider {
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis cache provider")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown cache provider %q", c.Cache.Provider)
	}
	if c.Pipeline.DefaultDepth < 1 || c.Pipeline.DefaultDepth > 3 {
		return fmt.Errorf("pipeline.default_depth must be 1, 2 or 3")
	}
	if c.Pipeline.HistoryTurns < 0 {
		return fmt.Errorf("pipeline.history_turns must not be negative")
	}
	if c.Pipeline.EventBuffer < 1 {
		return fmt.Errorf("pipeline.event_buffer must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate_limit requires positive requests and window")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
