package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsValidate(t *testing.T) {
	t.Setenv("KG_GRAPH_URL", "")
	cfg := Load()
	require.Equal(t, "bolt://localhost:7687", cfg.GraphURL)
	require.Equal(t, 3, cfg.MaxAttempts)
	require.Equal(t, 200*time.Millisecond, cfg.RetryInitial)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KG_GRAPH_URL", "memory://")
	t.Setenv("KG_MAX_ATTEMPTS", "5")
	t.Setenv("KG_RETRY_INITIAL", "50ms")
	t.Setenv("KG_LOG_DEBUG", "true")
	t.Setenv("KG_BATCH_SIZE", "not-a-number")
	cfg := Load()
	require.Equal(t, "memory://", cfg.GraphURL)
	require.Equal(t, 5, cfg.MaxAttempts)
	require.Equal(t, 50*time.Millisecond, cfg.RetryInitial)
	require.True(t, cfg.LogDebug)
	require.Equal(t, 500, cfg.BatchSize)
}

func TestValidateRejectsBadRanges(t *testing.T) {
	cfg := Load()
	cfg.MaxAttempts = 0
	require.Error(t, cfg.Validate())

	cfg = Load()
	cfg.RetryMax = cfg.RetryInitial / 2
	require.Error(t, cfg.Validate())

	cfg = Load()
	cfg.VocabularyFile = "/does/not/exist.yaml"
	require.Error(t, cfg.Validate())
}
