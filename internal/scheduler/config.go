package scheduler

import (
	"time"

	appconfig "github.com/duniafantasy/fantasybox/internal/config"
)

// Config controls the reaper interval and batch size.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		BatchSize:   100,
		JobTimeout:  30 * time.Second,
	}
}

// ProvideConfig maps application configuration onto the reaper config.
func ProvideConfig(cfg appconfig.Config) Config {
	return Config{
		RunInterval: cfg.ReaperInterval,
		BatchSize:   cfg.ReaperBatchSize,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
