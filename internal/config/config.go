package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ServiceName     string
	CoreDatabaseURL string
	TemporalAddress string
	HTTPListenAddr  string
	MetricsAddr     string
	LogLevel        string

	// SchedulerToken is the static bearer secret the external scheduler must
	// present on the billing trigger endpoint. Empty means the endpoint is
	// open to all callers.
	SchedulerToken string

	// BillingGraceDays is how long a subscription may stay past_due before
	// the lock sweep picks it up.
	BillingGraceDays int

	// DataRetentionDays is how long tenant data is kept after locking before
	// it becomes eligible for purge.
	DataRetentionDays int

	// BillingConcurrency bounds per-item parallelism within one billing cycle.
	BillingConcurrency int
}

func Load() (*Config, error) {
	cfg := &Config{
		ServiceName:     getEnv("SERVICE_NAME", "marketbill"),
		CoreDatabaseURL: getEnv("CORE_DATABASE_URL", ""),
		TemporalAddress: getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:  getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:     getEnv("METRICS_ADDR", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		SchedulerToken:  getEnv("SCHEDULER_TOKEN", ""),
	}

	var err error
	if cfg.BillingGraceDays, err = getEnvInt("BILLING_GRACE_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.DataRetentionDays, err = getEnvInt("DATA_RETENTION_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.BillingConcurrency, err = getEnvInt("BILLING_CONCURRENCY", 4); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the fields required by the given component are set.
func (c *Config) Validate(component string) error {
	var missing []string

	switch component {
	case "billing-api":
		if c.CoreDatabaseURL == "" {
			missing = append(missing, "CORE_DATABASE_URL")
		}
		if c.HTTPListenAddr == "" {
			missing = append(missing, "HTTP_LISTEN_ADDR")
		}
	case "worker":
		if c.CoreDatabaseURL == "" {
			missing = append(missing, "CORE_DATABASE_URL")
		}
		if c.TemporalAddress == "" {
			missing = append(missing, "TEMPORAL_ADDRESS")
		}
	}

	if c.BillingGraceDays < 0 {
		missing = append(missing, "BILLING_GRACE_DAYS (must be >= 0)")
	}
	if c.DataRetentionDays < 1 {
		missing = append(missing, "DATA_RETENTION_DAYS (must be >= 1)")
	}
	if c.BillingConcurrency < 1 {
		missing = append(missing, "BILLING_CONCURRENCY (must be >= 1)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing or invalid config for %s: %s", component, strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
