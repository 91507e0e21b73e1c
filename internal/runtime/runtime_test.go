package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/hidash/config"
)

func TestControllerAcquireRelease(t *testing.T) {
	limits := NewLimits(1, 1)
	controller := NewController(limits)

	require.Equal(t, limits, controller.LimitsSnapshot())

	require.NoError(t, controller.AcquireRequest(context.Background()))
	controller.ReleaseRequest()

	require.NoError(t, controller.AcquireUpload(context.Background()))
	require.ErrorIs(t, controller.AcquireUpload(context.Background()), ErrUploadsFull)
	controller.ReleaseUpload()
	require.NoError(t, controller.AcquireUpload(context.Background()))
}

func TestNewLimits_Defaults(t *testing.T) {
	l := NewLimits(0, -1)
	require.Equal(t, config.DefaultMaxConcurrentPasses, l.MaxConcurrentPasses)
	require.Equal(t, config.DefaultMaxLiveUploads, l.MaxLiveUploads)
	require.Equal(t, config.DefaultPassTimeout, l.PassTimeout)
}

func TestLimitsFromConfig(t *testing.T) {
	l := LimitsFromConfig(&config.Config{
		MaxConcurrentPasses: 3,
		MaxUploadBytes:      10,
		PreviewRowLimit:     5,
		PassTimeout:         time.Second,
	})
	require.Equal(t, 3, l.MaxConcurrentPasses)
	require.Equal(t, config.DefaultMaxLiveUploads, l.MaxLiveUploads)
	require.Equal(t, int64(10), l.MaxUploadBytes)
	require.Equal(t, 5, l.PreviewRowLimit)
	require.Equal(t, time.Second, l.PassTimeout)
}
