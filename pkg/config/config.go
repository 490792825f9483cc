package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Engine metadata database (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Message history store (Redis)
	Redis RedisConfig `yaml:"redis"`

	// Datasource connection management configuration
	Datasource DatasourceConfig `yaml:"datasource"`

	// LLM provider configuration
	LLM LLMConfig `yaml:"llm"`

	// Workflow stage timeouts and retry behavior
	Workflow WorkflowConfig `yaml:"workflow"`
}

// DatabaseConfig holds PostgreSQL configuration for the engine's own
// metadata database (connections, user files).
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"engine"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"sqlpilot_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds the message history store configuration. An empty host
// disables Redis and the engine falls back to in-memory history.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// DatasourceConfig holds target-database connection pool settings.
type DatasourceConfig struct {
	// PoolMaxConns is the maximum number of connections per datasource pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	// PoolMinConns is the minimum number of connections per datasource pool.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
	// ConnectTimeoutSeconds bounds establishment of new target connections.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds" env:"DATASOURCE_CONNECT_TIMEOUT_SECONDS" env-default:"10"`
}

// LLMConfig holds provider endpoints and model selection. Provider is either
// "openrouter" (OpenAI-compatible chat completions) or "anthropic".
type LLMConfig struct {
	Provider       string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openrouter"`
	BaseURL        string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	APIKey         string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	ContextModel   string `yaml:"context_model" env:"LLM_CONTEXT_MODEL" env-default:"anthropic/claude-sonnet-4"`
	GeneratorModel string `yaml:"generator_model" env:"LLM_GENERATOR_MODEL" env-default:"anthropic/claude-sonnet-4"`

	// Tool-loop budgets. The SQL generator gets more headroom because it
	// must self-test candidate queries before answering.
	ContextMaxIterations   int `yaml:"context_max_iterations" env:"LLM_CONTEXT_MAX_ITERATIONS" env-default:"20"`
	GeneratorMaxIterations int `yaml:"generator_max_iterations" env:"LLM_GENERATOR_MAX_ITERATIONS" env-default:"30"`
}

// WorkflowConfig bounds each workflow stage.
type WorkflowConfig struct {
	// StageTimeoutMinutes caps wall-clock time per stage including retries.
	StageTimeoutMinutes int `yaml:"stage_timeout_minutes" env:"WORKFLOW_STAGE_TIMEOUT_MINUTES" env-default:"10"`
	// MaxRetries is the per-stage retry attempt cap.
	MaxRetries int `yaml:"max_retries" env:"WORKFLOW_MAX_RETRIES" env-default:"3"`
	// InitialDelayMillis seeds the exponential backoff schedule.
	InitialDelayMillis int `yaml:"initial_delay_millis" env:"WORKFLOW_INITIAL_DELAY_MILLIS" env-default:"200"`
}

// StageTimeout returns the stage timeout as a duration.
func (c *WorkflowConfig) StageTimeout() time.Duration {
	return time.Duration(c.StageTimeoutMinutes) * time.Minute
}

// InitialDelay returns the backoff seed as a duration.
func (c *WorkflowConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelayMillis) * time.Millisecond
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. Secrets (PGPASSWORD, LLM_API_KEY, REDIS_PASSWORD) must
// come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "openrouter", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.ContextMaxIterations <= 0 || c.LLM.GeneratorMaxIterations <= 0 {
		return fmt.Errorf("tool-loop iteration budgets must be positive")
	}
	if c.Workflow.StageTimeoutMinutes <= 0 {
		return fmt.Errorf("stage timeout must be positive")
	}
	return nil
}
