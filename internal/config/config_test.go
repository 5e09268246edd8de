// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := FromEnv()
	require.NoError(err)
	require.False(cfg.Enabled)
	require.Equal(0, cfg.SampleBps)
	require.Equal(5, cfg.BreakerThreshold)
	require.Equal(60*time.Second, cfg.BreakerCooldown)
	require.Equal(3, cfg.RetryAttempts)
	require.Equal(50*time.Millisecond, cfg.RetryMinDelay)
	require.Equal(250*time.Millisecond, cfg.RetryMaxDelay)
	require.Equal(":8085", cfg.HTTPAddr)
}

func TestEnvOverrides(t *testing.T) {
	require := require.New(t)

	t.Setenv("TRANSPARENCY_ENABLED", "true")
	t.Setenv("TRANSPARENCY_SAMPLE_BPS", "500")
	t.Setenv("TRANSPARENCY_BREAKER_THRESHOLD", "10")
	t.Setenv("TRANSPARENCY_BREAKER_COOLDOWN_MS", "30000")
	t.Setenv("TRANSPARENCY_KEY_ID", "key-7")

	cfg, err := FromEnv()
	require.NoError(err)
	require.True(cfg.Enabled)
	require.Equal(500, cfg.SampleBps)
	require.Equal(10, cfg.BreakerThreshold)
	require.Equal(30*time.Second, cfg.BreakerCooldown)
	require.Equal("key-7", cfg.KeyID)
}

func TestInvalidValuesFailFast(t *testing.T) {
	cases := map[string]string{
		"TRANSPARENCY_SAMPLE_BPS":          "lots",
		"TRANSPARENCY_ENABLED":             "yes please",
		"TRANSPARENCY_BREAKER_COOLDOWN_MS": "-1",
		"TRANSPARENCY_RETRY_ATTEMPTS":      "3.5",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := FromEnv()
			require.Error(t, err)
			require.Contains(t, err.Error(), key)
		})
	}
}

func TestSampleBpsRange(t *testing.T) {
	require := require.New(t)

	t.Setenv("TRANSPARENCY_SAMPLE_BPS", "10001")
	_, err := FromEnv()
	require.Error(err)
}

func TestInvertedRetryRange(t *testing.T) {
	require := require.New(t)

	t.Setenv("TRANSPARENCY_RETRY_MIN_DELAY_MS", "300")
	t.Setenv("TRANSPARENCY_RETRY_MAX_DELAY_MS", "100")
	_, err := FromEnv()
	require.Error(err)
}
