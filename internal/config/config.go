package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the taskhive backend.
// Values are read from unprefixed environment variables so that the names
// match the documented operator surface (MODEL_API_CREDENTIAL et al).
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`

	// Model gateway
	ModelAPICredential string `envconfig:"MODEL_API_CREDENTIAL" default:""`
	ModelName          string `envconfig:"MODEL_NAME" default:"gpt-4o-mini"`
	ModelBaseURL       string `envconfig:"MODEL_BASE_URL" default:""`

	// Chat turn policy
	HistoryWindow            int `envconfig:"HISTORY_WINDOW" default:"50"`
	HistoryTokenBudget       int `envconfig:"HISTORY_TOKEN_BUDGET" default:"3500"`
	TurnDeadlineSeconds      int `envconfig:"TURN_DEADLINE_SECONDS" default:"60"`
	ModelCallDeadlineSeconds int `envconfig:"MODEL_CALL_DEADLINE_SECONDS" default:"30"`
	MaxToolRounds            int `envconfig:"MAX_TOOL_ROUNDS" default:"1"`

	// Task events (fire-and-forget)
	EventWebhookURL string `envconfig:"EVENT_WEBHOOK_URL" default:""`
	EventBufferSize int    `envconfig:"EVENT_BUFFER_SIZE" default:"256"`
}

// ResolveDefaults validates driver selection and derives DBDriver when set
// to "auto" or empty: postgres when a DSN is present, sqlite otherwise.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		} else {
			c.DBDriver = "sqlite"
		}
	}
	switch c.DBDriver {
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			c.SQLitePath = "taskhive.db"
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if c.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be positive")
	}
	if c.MaxToolRounds <= 0 {
		return fmt.Errorf("MAX_TOOL_ROUNDS must be positive")
	}
	return nil
}

// New creates a new Config by parsing environment variables.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Str("model_name", cfg.ModelName).
		Bool("model_credential_present", cfg.ModelAPICredential != "").
		Int("history_window", cfg.HistoryWindow).
		Int("max_tool_rounds", cfg.MaxToolRounds).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing.
func NewForTesting() *Config {
	cfg := &Config{
		Environment:              EnvTesting,
		HTTPPort:                 8080,
		DBDriver:                 "sqlite",
		SQLitePath:               ":memory:",
		ModelName:                "gpt-4o-mini",
		HistoryWindow:            50,
		HistoryTokenBudget:       3500,
		TurnDeadlineSeconds:      60,
		ModelCallDeadlineSeconds: 30,
		MaxToolRounds:            1,
		EventBufferSize:          16,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// TurnDeadline returns the overall per-turn deadline.
func (c *Config) TurnDeadline() time.Duration {
	return time.Duration(c.TurnDeadlineSeconds) * time.Second
}

// ModelCallDeadline returns the per-gateway-call deadline.
func (c *Config) ModelCallDeadline() time.Duration {
	return time.Duration(c.ModelCallDeadlineSeconds) * time.Second
}
