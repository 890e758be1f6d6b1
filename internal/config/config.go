// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers an optional YAML file, a dotenv file and environment variables on top.
// - Validation failures wrap ErrInvalidConfig; loader failures wrap ErrLoadConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// UpstreamURL is the GraphQL endpoint of the contest ranking service.
	UpstreamURL string `koanf:"upstream_url"`

	// UpstreamTimeoutMS bounds a single upstream attempt.
	UpstreamTimeoutMS int `koanf:"upstream_timeout_ms"`

	// UpstreamRetries is the number of extra attempts on transient failures.
	UpstreamRetries int `koanf:"upstream_retries"`

	// UpstreamBackoffMS is the linear backoff step between attempts.
	UpstreamBackoffMS int `koanf:"upstream_backoff_ms"`

	// UserAgent is sent with every upstream request.
	UserAgent string `koanf:"user_agent"`

	// BaselineRating is the rating assumed before the first contest.
	BaselineRating float64 `koanf:"baseline_rating"`

	// MaxProblems is the upper bucket of the solve histogram.
	MaxProblems int `koanf:"max_problems"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		UpstreamURL:       "https://leetcode.com/graphql",
		UpstreamTimeoutMS: 10_000,
		UpstreamRetries:   2,
		UpstreamBackoffMS: 250,
		UserAgent:         "contestlens/1.0",
		BaselineRating:    1500,
		MaxProblems:       4,
	}
}

// UpstreamTimeout returns UpstreamTimeoutMS as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutMS) * time.Millisecond
}

// UpstreamBackoff returns UpstreamBackoffMS as a duration.
func (c *Config) UpstreamBackoff() time.Duration {
	return time.Duration(c.UpstreamBackoffMS) * time.Millisecond
}

// Validate checks invariants the rest of the service relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.UpstreamURL) == "":
		return fmt.Errorf("%w: upstream_url must not be empty", ErrInvalidConfig)
	case c.UpstreamTimeoutMS <= 0:
		return fmt.Errorf("%w: upstream_timeout_ms must be positive", ErrInvalidConfig)
	case c.UpstreamRetries < 0:
		return fmt.Errorf("%w: upstream_retries must not be negative", ErrInvalidConfig)
	case c.UpstreamBackoffMS < 0:
		return fmt.Errorf("%w: upstream_backoff_ms must not be negative", ErrInvalidConfig)
	case c.MaxProblems < 0:
		return fmt.Errorf("%w: max_problems must not be negative", ErrInvalidConfig)
	}
	return nil
}
