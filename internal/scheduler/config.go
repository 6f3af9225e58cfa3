package scheduler

import (
	"time"

	appconfig "github.com/pulseboard/pulseboard/internal/config"
)

// Config controls the scheduler tick and per-job cadences.
type Config struct {
	// RunInterval is the base tick; each pass runs whichever jobs are due.
	RunInterval time.Duration

	SyncInterval        time.Duration
	HealthCheckInterval time.Duration
	AlertExpiryInterval time.Duration

	// JobTimeout bounds a single job invocation.
	JobTimeout time.Duration

	// EnabledJobs restricts the scheduler to the named jobs. Empty means
	// all jobs run.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:         time.Minute,
		SyncInterval:        15 * time.Minute,
		HealthCheckInterval: time.Hour,
		AlertExpiryInterval: 10 * time.Minute,
		JobTimeout:          10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = defaults.SyncInterval
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = defaults.HealthCheckInterval
	}
	if c.AlertExpiryInterval <= 0 {
		c.AlertExpiryInterval = defaults.AlertExpiryInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

// ProvideConfig maps the application intervals onto the scheduler.
func ProvideConfig(cfg appconfig.Config) Config {
	return Config{
		SyncInterval:        cfg.SyncInterval,
		HealthCheckInterval: cfg.HealthCheckInterval,
		AlertExpiryInterval: cfg.AlertExpiryInterval,
	}.withDefaults()
}
