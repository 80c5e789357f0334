// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Fields stay exported so
// viper's mapstructure decoding can reach them.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Relay   RelayConfig   `mapstructure:"relay" yaml:"relay"`
	Solver  SolverConfig  `mapstructure:"solver" yaml:"solver"`
	Intent  IntentConfig  `mapstructure:"intent" yaml:"intent"`
	Planner PlannerConfig `mapstructure:"planner" yaml:"planner"`
	Graph   GraphConfig   `mapstructure:"graph" yaml:"graph"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// RelayConfig describes the websocket connection to the device controller.
type RelayConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	AuthToken      string        `mapstructure:"auth_token" yaml:"-"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	PingInterval   time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	PongWait       time.Duration `mapstructure:"pong_wait" yaml:"pong_wait"`
	SendBuffer     int           `mapstructure:"send_buffer" yaml:"send_buffer"`
}

// SolverConfig selects the pathfinding backend.
type SolverConfig struct {
	Mode      string        `mapstructure:"mode" yaml:"mode"` // "bfs" or "oracle"
	OracleURL string        `mapstructure:"oracle_url" yaml:"oracle_url"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// IntentConfig selects and tunes the intent extraction backend.
type IntentConfig struct {
	Provider string    `mapstructure:"provider" yaml:"provider"` // "rules" or "gemini"
	LLM      LLMConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMConfig defines the configuration for the generative model client.
type LLMConfig struct {
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// PlannerConfig tunes plan assembly and execution monitoring.
type PlannerConfig struct {
	PerStepEstimateMs int `mapstructure:"per_step_estimate_ms" yaml:"per_step_estimate_ms"`
	StepTimeoutMs     int `mapstructure:"step_timeout_ms" yaml:"step_timeout_ms"`
}

// GraphConfig specifies the backend for the navigation graph store.
type GraphConfig struct {
	Backend  string         `mapstructure:"backend" yaml:"backend"` // "memory" or "postgres"
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// PostgresConfig holds the connection details for a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"-"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// DSN assembles a pgx-compatible connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "wayfinder")
	v.SetDefault("logger.log_file", "wayfinder.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Relay --
	v.SetDefault("relay.url", "ws://localhost:8765")
	v.SetDefault("relay.reconnect_delay", "5s")
	v.SetDefault("relay.ping_interval", "25s")
	v.SetDefault("relay.write_timeout", "10s")
	v.SetDefault("relay.pong_wait", "60s")
	v.SetDefault("relay.send_buffer", 64)

	// -- Solver --
	v.SetDefault("solver.mode", "bfs")
	v.SetDefault("solver.timeout", "30s")

	// -- Intent --
	v.SetDefault("intent.provider", "rules")
	v.SetDefault("intent.llm.model", "gemini-2.5-flash")
	v.SetDefault("intent.llm.api_timeout", "30s")
	v.SetDefault("intent.llm.temperature", 0.1)
	v.SetDefault("intent.llm.max_tokens", 256)

	// -- Planner --
	v.SetDefault("planner.per_step_estimate_ms", 2000)
	v.SetDefault("planner.step_timeout_ms", 5000)

	// -- Graph store --
	v.SetDefault("graph.backend", "memory")
	v.SetDefault("graph.postgres.host", "localhost")
	v.SetDefault("graph.postgres.port", 5432)
	v.SetDefault("graph.postgres.user", "postgres")
	v.SetDefault("graph.postgres.password", "") // Should be set via env var
	v.SetDefault("graph.postgres.dbname", "wayfinder")
	v.SetDefault("graph.postgres.sslmode", "disable")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("relay.auth_token", "WAYFINDER_RELAY_TOKEN")
	v.BindEnv("intent.llm.api_key", "WAYFINDER_GEMINI_API_KEY")
	v.BindEnv("graph.postgres.password", "WAYFINDER_DB_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Relay.URL)
	if err != nil {
		return fmt.Errorf("relay.url is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("relay.url must use the ws or wss scheme, got %q", u.Scheme)
	}
	if c.Relay.PingInterval <= 0 {
		return fmt.Errorf("relay.ping_interval must be a positive duration")
	}
	if c.Relay.PingInterval >= c.Relay.PongWait {
		return fmt.Errorf("relay.ping_interval must be shorter than relay.pong_wait")
	}
	if c.Relay.SendBuffer <= 0 {
		return fmt.Errorf("relay.send_buffer must be a positive integer")
	}

	switch c.Solver.Mode {
	case "bfs":
	case "oracle":
		if c.Solver.OracleURL == "" {
			return fmt.Errorf("solver.oracle_url is required when solver.mode is %q", c.Solver.Mode)
		}
	default:
		return fmt.Errorf("solver.mode must be \"bfs\" or \"oracle\", got %q", c.Solver.Mode)
	}

	switch c.Intent.Provider {
	case "rules":
	case "gemini":
		if c.Intent.LLM.APIKey == "" {
			return fmt.Errorf("intent.llm.api_key is required when intent.provider is %q", c.Intent.Provider)
		}
	default:
		return fmt.Errorf("intent.provider must be \"rules\" or \"gemini\", got %q", c.Intent.Provider)
	}

	switch c.Graph.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("graph.backend must be \"memory\" or \"postgres\", got %q", c.Graph.Backend)
	}

	if c.Planner.PerStepEstimateMs <= 0 {
		return fmt.Errorf("planner.per_step_estimate_ms must be a positive integer")
	}
	return nil
}
