package dispatchnotices

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ProjectID     string        `mapstructure:"project_id"`
	Workers       int           `mapstructure:"workers"`
	MaxErrors     int           `mapstructure:"max_errors"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 1,
		Timeout:       5 * time.Minute,
		Workers:       4,
		MaxErrors:     20,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.MaxErrors < 0 {
		return fmt.Errorf("max_errors must not be negative")
	}
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	return nil
}
