package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/flomentum_test")
	t.Setenv("AI_VENDOR", "stub")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Pipeline.PollInterval)
	assert.Equal(t, 50, cfg.Pipeline.BatchSize)
	assert.Equal(t, 120*time.Second, cfg.Pipeline.DebounceWindow)
	assert.Equal(t, 42, cfg.Pipeline.HorizonDays)
	assert.Equal(t, 30, cfg.Pipeline.InsightsCacheTTLDays)
	assert.Equal(t, 14, cfg.Pipeline.ReadinessCalibrationDays)
	assert.Equal(t, 180, cfg.Pipeline.SleepMinTotalMinutes)
	assert.Equal(t, 0.005, cfg.Pipeline.DedupEpsilonFraction)
	assert.Equal(t, 3, cfg.Pipeline.BaselineRefreshLocalHour)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AI_VENDOR", "stub")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadVendorKeyRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/flomentum_test")
	t.Setenv("AI_VENDOR", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	_, err = Load()
	assert.NoError(t, err)
}

func TestCalciumBandsClassify(t *testing.T) {
	bands := CalciumBands{Minimal: 10, Mild: 100, Moderate: 400, Severe: 1000}

	assert.Equal(t, "zero", bands.Classify(0))
	assert.Equal(t, "minimal", bands.Classify(5))
	assert.Equal(t, "mild", bands.Classify(50))
	assert.Equal(t, "moderate", bands.Classify(250))
	assert.Equal(t, "severe", bands.Classify(900))
}

func TestPipelineOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/flomentum_test")
	t.Setenv("AI_VENDOR", "stub")
	t.Setenv("POLL_INTERVAL_MS", "2500")
	t.Setenv("BATCH_SIZE", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, cfg.Pipeline.PollInterval)
	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
}
