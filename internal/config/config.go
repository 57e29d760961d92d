package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

type Config struct {
	AppEnv   string
	LogLevel string

	Backend    string
	LedgerPath string
	SQLitePath string

	HealthAddr string

	DiscordBotToken  string
	DiscordChannelId string
}

// Load reads configuration from the environment and validates it. Discord
// settings are only checked by ValidateBot since most commands never talk to
// Discord.
func Load() (*Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read returns the environment configuration without validating it, for
// callers that apply overrides first.
func Read() *Config {
	return &Config{
		AppEnv:           getEnvOrDefault("APP_ENV", "production"),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		Backend:          strings.ToLower(getEnvOrDefault("LEDGER_BACKEND", BackendJSON)),
		LedgerPath:       getEnvOrDefault("LEDGER_PATH", "blockchain.json"),
		SQLitePath:       getEnvOrDefault("LEDGER_SQLITE_PATH", "ledger.db"),
		HealthAddr:       getEnvOrDefault("HEALTH_ADDR", ":8080"),
		DiscordBotToken:  os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordChannelId: os.Getenv("DISCORD_CHANNEL_ID"),
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendJSON:
		if c.LedgerPath == "" {
			errs = append(errs, fmt.Errorf("LEDGER_PATH is required for the %s backend", BackendJSON))
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("LEDGER_SQLITE_PATH is required for the %s backend", BackendSQLite))
		}
	default:
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND must be %q or %q, got %q", BackendJSON, BackendSQLite, c.Backend))
	}
	return errors.Join(errs...)
}

// ValidateBot reports missing Discord settings.
func (c *Config) ValidateBot() error {
	var errs []error
	if c.DiscordBotToken == "" {
		errs = append(errs, errors.New("DISCORD_BOT_TOKEN is not set"))
	}
	if c.DiscordChannelId == "" {
		errs = append(errs, errors.New("DISCORD_CHANNEL_ID is not set"))
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
