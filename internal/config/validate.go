package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateRules(); err != nil {
		return err
	}
	if err := c.validateRunner(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAPI() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url must be set")
	}
	if c.API.TimeoutSeconds <= 0 {
		return errors.New("api.timeout_seconds must be positive")
	}
	if c.API.MaxRetries < 1 {
		return errors.New("api.max_retries must be at least 1")
	}
	if c.API.BreakerThreshold < 1 {
		return errors.New("api.breaker_threshold must be at least 1")
	}
	if c.API.BreakerCooldownSeconds < 1 {
		return errors.New("api.breaker_cooldown_seconds must be at least 1")
	}
	if c.API.PollIntervalSeconds < 1 {
		return errors.New("api.poll_interval_seconds must be at least 1")
	}
	return nil
}

func (c *Config) validateRules() error {
	if c.Rules.MinSizeMB < 0 {
		return errors.New("rules.min_size_mb cannot be negative")
	}
	if c.Rules.FuzzyThreshold < 0 || c.Rules.FuzzyThreshold > 100 {
		return errors.New("rules.fuzzy_threshold must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateRunner() error {
	if c.Runner.MaxConcurrentJobs < 1 {
		return errors.New("runner.max_concurrent_jobs must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "auto", "json", "text":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
