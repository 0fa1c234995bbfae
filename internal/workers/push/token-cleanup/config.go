package tokencleanup

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxJobsActive   int           `mapstructure:"max_jobs_active"`
	Timeout         time.Duration `mapstructure:"timeout"`
	StaleBeforeDays int           `mapstructure:"stale_before_days"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		MaxJobsActive:   1,
		Timeout:         2 * time.Minute,
		StaleBeforeDays: 30,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.StaleBeforeDays < 1 {
		return fmt.Errorf("stale_before_days must be at least 1")
	}
	return nil
}
