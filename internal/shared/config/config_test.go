package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "valuation-service")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "9095", cfg.MetricsPort)
	assert.Equal(t, "live_ingest", cfg.TopicLiveIngest)
	assert.Equal(t, 0.02, cfg.Valuation.MinEdge)
	assert.Equal(t, 60, cfg.Valuation.RateLimitPerMinute)
	assert.Equal(t, 10*time.Second, cfg.Valuation.ProbabilityTTL)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "valuation.yaml")
	doc := []byte(`
valuation:
  min_edge: 0.05
  min_confidence: 0.7
  value_bet_lifetime: 30m
  outbound_queue: 32
`)
	require.NoError(t, os.WriteFile(path, doc, 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("VALUATION_OUTBOUND_QUEUE", "64")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.05, cfg.Valuation.MinEdge)
	assert.Equal(t, 0.7, cfg.Valuation.MinConfidence)
	assert.Equal(t, 30*time.Minute, cfg.Valuation.ValueBetLifetime)
	assert.Equal(t, 64, cfg.Valuation.OutboundQueue, "env wins over file")
	assert.Equal(t, 10.0, cfg.Valuation.MaxOdds, "absent keys keep defaults")
}

func TestValuation_Validate(t *testing.T) {
	v := DefaultValuation()
	require.NoError(t, v.Validate())

	bad := v
	bad.MaxOdds = 1.2
	assert.Error(t, bad.Validate())

	bad = v
	bad.KellyCap = 1.5
	assert.Error(t, bad.Validate())

	bad = v
	bad.OutboundQueue = 0
	assert.Error(t, bad.Validate())
}
