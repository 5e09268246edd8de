// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the service configuration. Environment reading
// lives here and is called only from the process entry point; every
// component receives explicit values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full transparencyd configuration.
type Config struct {
	HTTPAddr string

	Enabled   bool
	SampleBps int
	FeeBp     int

	BreakerThreshold int
	BreakerCooldown  time.Duration
	RetryAttempts    int
	RetryMinDelay    time.Duration
	RetryMaxDelay    time.Duration

	KeyID            string
	PrivateKeyBase64 string
	PublicKeyBase64  string

	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	PostgresURL string

	RedisAddr     string
	RedisPassword string

	AlertWebhookURL    string
	AlertWebhookSecret string
}

// FromEnv builds a Config from the environment. Unset variables take
// defaults; variables that are set but unparsable are a startup error
// rather than a silent fallback, so misconfiguration cannot masquerade
// as a disabled feature.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr:           getEnv("TRANSPARENCY_HTTP_ADDR", ":8085"),
		KeyID:              os.Getenv("TRANSPARENCY_KEY_ID"),
		PrivateKeyBase64:   os.Getenv("TRANSPARENCY_PRIVATE_KEY_BASE64"),
		PublicKeyBase64:    os.Getenv("TRANSPARENCY_PUBLIC_KEY_BASE64"),
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "analytics"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),
		PostgresURL:        os.Getenv("POSTGRES_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		AlertWebhookURL:    os.Getenv("ALERT_WEBHOOK_URL"),
		AlertWebhookSecret: os.Getenv("ALERT_WEBHOOK_SECRET"),
	}

	var err error
	if cfg.Enabled, err = boolEnv("TRANSPARENCY_ENABLED", false); err != nil {
		return Config{}, err
	}
	if cfg.SampleBps, err = intEnv("TRANSPARENCY_SAMPLE_BPS", 0); err != nil {
		return Config{}, err
	}
	if cfg.FeeBp, err = intEnv("TRANSPARENCY_FEE_BP", 0); err != nil {
		return Config{}, err
	}
	if cfg.BreakerThreshold, err = intEnv("TRANSPARENCY_BREAKER_THRESHOLD", 5); err != nil {
		return Config{}, err
	}
	if cfg.BreakerCooldown, err = msEnv("TRANSPARENCY_BREAKER_COOLDOWN_MS", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RetryAttempts, err = intEnv("TRANSPARENCY_RETRY_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}
	if cfg.RetryMinDelay, err = msEnv("TRANSPARENCY_RETRY_MIN_DELAY_MS", 50*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.RetryMaxDelay, err = msEnv("TRANSPARENCY_RETRY_MAX_DELAY_MS", 250*time.Millisecond); err != nil {
		return Config{}, err
	}

	if cfg.SampleBps < 0 || cfg.SampleBps > 10000 {
		return Config{}, fmt.Errorf("TRANSPARENCY_SAMPLE_BPS out of range: %d", cfg.SampleBps)
	}
	if cfg.RetryMaxDelay < cfg.RetryMinDelay {
		return Config{}, fmt.Errorf("retry delay range inverted: min %s > max %s",
			cfg.RetryMinDelay, cfg.RetryMaxDelay)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

func msEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid millisecond value %q", key, v)
	}
	return time.Duration(n) * time.Millisecond, nil
}
