// Package config loads the archiver configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"marketdata-archiver/internal/domain"
)

// Config holds the archiver configuration.
type Config struct {
	// Replay
	ReplayEndpoint     string `env:"REPLAY_ENDPOINT"`
	ReplayMaxLineBytes int    `env:"REPLAY_MAX_LINE_BYTES" envDefault:"100000000"`

	// Selection
	Exchanges     []string `env:"EXCHANGES" envSeparator:"," envDefault:"gate-io"`
	MarketsFilter []string `env:"MARKETS_FILTER" envSeparator:"," envDefault:"all"`
	ArchiveDates  string   `env:"ARCHIVE_DATES" envDefault:"yesterday"`

	// Storage
	ClickHouseDSN string `env:"CLICKHOUSE_DSN"`
	PostgresDSN   string `env:"POSTGRES_DSN"`

	// Execution
	RunConcurrency int  `env:"RUN_CONCURRENCY" envDefault:"1"`
	ArchiveVerify  bool `env:"ARCHIVE_VERIFY" envDefault:"false"`

	// Observability
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	cfg.Exchanges = trimAll(cfg.Exchanges)
	cfg.MarketsFilter = trimAll(cfg.MarketsFilter)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	return cfg, nil
}

// Validate validates the configuration. Storage DSNs are checked by the
// binary since in-memory mode does not need them.
func (c *Config) Validate() error {
	if c.ReplayEndpoint == "" {
		return fmt.Errorf("REPLAY_ENDPOINT is required")
	}

	if len(c.Exchanges) == 0 {
		return fmt.Errorf("at least one exchange must be configured")
	}

	if len(c.MarketsFilter) == 0 {
		return fmt.Errorf("MARKETS_FILTER must be \"all\" or a list of markets")
	}

	if _, err := domain.ParseRunDates(c.ArchiveDates, time.Now()); err != nil {
		return fmt.Errorf("ARCHIVE_DATES: %w", err)
	}

	if c.RunConcurrency < 1 {
		return fmt.Errorf("RUN_CONCURRENCY must be at least 1")
	}

	if c.ReplayMaxLineBytes < 1 {
		return fmt.Errorf("REPLAY_MAX_LINE_BYTES must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// Verbose reports whether per-line and per-run detail should be logged.
func (c *Config) Verbose() bool {
	return c.LogLevel == "debug"
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
