// Package config provides unified configuration loading: defaults,
// then a YAML file, then environment variable overrides.
package config

import (
	"fmt"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	// Server holds HTTP server settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Store holds task and history persistence settings.
	Store StoreConfig `yaml:"store" env:"STORE"`

	// LLM holds language model provider settings.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Orchestrator holds routing settings.
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`

	// Agents lists the context-backed sub-agents to register at startup.
	Agents []AgentConfig `yaml:"agents" env:"-"`

	// Log holds logging settings.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry holds tracing settings.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// HTTPPort is the task API port.
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// MetricsPort is the Prometheus scrape port.
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// BaseURL is the externally reachable base URL of this process.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// DefaultAgentID handles task-send requests naming no agent.
	DefaultAgentID string `yaml:"default_agent_id" env:"DEFAULT_AGENT_ID"`
	// ReadTimeout bounds request reads.
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// WriteTimeout bounds response writes.
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// RequestTimeout bounds one task-send end to end.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	// AuthEnabled turns on bearer token authentication.
	AuthEnabled bool `yaml:"auth_enabled" env:"AUTH_ENABLED"`
	// AuthToken is the expected bearer token.
	AuthToken string `yaml:"auth_token" env:"AUTH_TOKEN"`
	// RateLimit is the sustained task-send rate per second, 0 disables.
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	// RateBurst is the task-send burst size.
	RateBurst int `yaml:"rate_burst" env:"RATE_BURST"`
	// AllowTerminalCancel keeps the legacy cancel-always-wins behavior.
	AllowTerminalCancel bool `yaml:"allow_terminal_cancel" env:"ALLOW_TERMINAL_CANCEL"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Type selects the task store backend: memory or redis.
	Type string `yaml:"type" env:"TYPE"`
	// Redis holds settings used when Type is redis.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
	// History holds chat history store settings.
	History HistoryConfig `yaml:"history" env:"HISTORY"`
	// TaskRetention is how long terminal tasks are kept.
	TaskRetention time.Duration `yaml:"task_retention" env:"TASK_RETENTION"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	PoolSize  int    `yaml:"pool_size" env:"POOL_SIZE"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// HistoryConfig holds chat history store settings.
type HistoryConfig struct {
	// Dialect selects the backend: memory, sqlite, or postgres.
	Dialect string `yaml:"dialect" env:"DIALECT"`
	// DSN is the data source name for sqlite or postgres.
	DSN string `yaml:"dsn" env:"DSN"`
}

// LLMConfig holds language model provider settings.
type LLMConfig struct {
	// BaseURL is the OpenAI-compatible API base URL.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// APIKey authenticates against the provider.
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// Model is the default model.
	Model string `yaml:"model" env:"MODEL"`
	// Timeout bounds one completion request.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// OrchestratorConfig holds routing settings.
type OrchestratorConfig struct {
	// Model overrides the provider default for routing decisions.
	Model string `yaml:"model" env:"MODEL"`
	// DelegationTimeout bounds one sub-agent call.
	DelegationTimeout time.Duration `yaml:"delegation_timeout" env:"DELEGATION_TIMEOUT"`
	// ExitPhrases overrides the built-in sticky release phrases.
	ExitPhrases []string `yaml:"exit_phrases" env:"EXIT_PHRASES"`
	// MaxHistoryTurns caps prior turns replayed to the oracle.
	MaxHistoryTurns int `yaml:"max_history_turns" env:"MAX_HISTORY_TURNS"`
	// ContextDir holds the sub-agent markdown context files.
	ContextDir string `yaml:"context_dir" env:"CONTEXT_DIR"`
}

// AgentConfig describes one sub-agent to register at startup.
type AgentConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
	Model       string `yaml:"model"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// EnableCaller annotates log lines with the call site.
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	// Enabled turns on OTLP trace export.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLPEndpoint is the collector gRPC endpoint.
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// ServiceName is the reported service name.
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// SampleRate is the trace sampling ratio in [0,1].
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// DefaultConfig returns the configuration used when nothing overrides
// it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:            8080,
			MetricsPort:         9090,
			BaseURL:             "http://localhost:8080",
			DefaultAgentID:      "orchestrator",
			ReadTimeout:         15 * time.Second,
			WriteTimeout:        90 * time.Second,
			ShutdownTimeout:     10 * time.Second,
			RequestTimeout:      60 * time.Second,
			AllowTerminalCancel: true,
		},
		Store: StoreConfig{
			Type: "memory",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				PoolSize:  10,
				KeyPrefix: "dirigent:",
			},
			History: HistoryConfig{
				Dialect: "memory",
			},
			TaskRetention: 24 * time.Hour,
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			DelegationTimeout: 30 * time.Second,
			MaxHistoryTurns:   20,
			ContextDir:        "contexts",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "dirigent",
			SampleRate:   1.0,
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port %d", c.Server.HTTPPort)
	}
	if c.Server.AuthEnabled && c.Server.AuthToken == "" {
		return fmt.Errorf("auth_enabled requires auth_token")
	}
	switch c.Store.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}
	switch c.Store.History.Dialect {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown history dialect %q", c.Store.History.Dialect)
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry enabled requires otlp_endpoint")
	}
	seen := make(map[string]struct{}, len(c.Agents))
	for _, ag := range c.Agents {
		if ag.ID == "" {
			return fmt.Errorf("agent with empty id")
		}
		if _, dup := seen[ag.ID]; dup {
			return fmt.Errorf("duplicate agent id %q", ag.ID)
		}
		seen[ag.ID] = struct{}{}
	}
	return nil
}
