package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HIDASH_ADDR", "")
	t.Setenv("HIDASH_BUCKET_MODE", "")
	t.Setenv("HIDASH_ALLOWED_DIRS", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultAddr, cfg.Addr)
	require.Equal(t, BucketModeOverride, cfg.BucketMode)
	require.Equal(t, DefaultPassTimeout, cfg.PassTimeout)
	require.Equal(t, int64(DefaultMaxUploadBytes), cfg.MaxUploadBytes)
	require.Empty(t, cfg.AllowedDirs)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HIDASH_ADDR", ":9000")
	t.Setenv("HIDASH_BUCKET_MODE", "Intersect")
	t.Setenv("HIDASH_UPLOAD_TTL", "5m")
	t.Setenv("HIDASH_PAGE_SIZE", "7")
	t.Setenv("HIDASH_LOG_PRETTY", "yes")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, BucketModeIntersect, cfg.BucketMode)
	require.Equal(t, 5*time.Minute, cfg.UploadIdleTTL)
	require.Equal(t, 7, cfg.PreviewRowLimit)
	require.True(t, cfg.Pretty)
}

func TestLoad_RejectsUnknownBucketMode(t *testing.T) {
	t.Setenv("HIDASH_BUCKET_MODE", "union")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("HIDASH_BUCKET_MODE", "")
	t.Setenv("HIDASH_MAX_CONCURRENT", "lots")
	t.Setenv("HIDASH_PASS_TIMEOUT", "-3s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultMaxConcurrentPasses, cfg.MaxConcurrentPasses)
	require.Equal(t, DefaultPassTimeout, cfg.PassTimeout)
}
