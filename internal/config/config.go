package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	ReceiverURLs    []string `env:"RECEIVERS_URL,required=true"`
	TimeoutMS       int      `env:"TIMEOUT_MS,default=5000"`
	MaxAttempts     int      `env:"MAX_ATTEMPTS,default=5"`
	DatabaseDSN     string   `env:"DATABASE_DSN,required=true"`
	RedisURL        string   `env:"REDIS_URL"`
	RecoveryEnabled bool     `env:"RECOVERY_ENABLED,default=true"`
	Origin          string   `env:"ORIGIN"`
	APIPort         int      `env:"API_PORT,default=8080"`
	LogLevel        string   `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Origin == "" {
		if hostname, hostErr := os.Hostname(); hostErr == nil {
			cfg.Origin = hostname
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces the receiver list and retry budget constraints. An
// invalid configuration is fatal at construction and is never retried.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	if len(c.ReceiverURLs) == 0 {
		return fmt.Errorf("at least one receiver url is required")
	}

	seen := make(map[string]struct{}, len(c.ReceiverURLs))
	for i, raw := range c.ReceiverURLs {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return fmt.Errorf("receiver url at index %d is empty", i)
		}

		parsed, err := url.Parse(trimmed)
		if err != nil {
			return fmt.Errorf("invalid receiver url %q: %w", trimmed, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("receiver url %q must use http or https", trimmed)
		}
		if parsed.Host == "" {
			return fmt.Errorf("receiver url %q must be absolute", trimmed)
		}

		if _, dup := seen[trimmed]; dup {
			return fmt.Errorf("duplicate receiver url %q", trimmed)
		}
		seen[trimmed] = struct{}{}
		c.ReceiverURLs[i] = trimmed
	}

	if c.TimeoutMS <= 0 {
		return fmt.Errorf("timeout must be positive (got %d ms)", c.TimeoutMS)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1 (got %d)", c.MaxAttempts)
	}

	return nil
}

// Timeout returns the per-call transport timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
