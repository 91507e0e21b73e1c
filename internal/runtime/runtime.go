package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/vinodismyname/hidash/config"
	"golang.org/x/sync/semaphore"
)

// ErrUploadsFull indicates every live upload slot is taken.
var ErrUploadsFull = errors.New("runtime: live upload limit reached")

// Limits captures the concurrency and upload guardrails configured for the server.
type Limits struct {
	// Concurrency caps
	MaxConcurrentPasses int
	MaxLiveUploads      int

	// Payload and row bounds
	MaxUploadBytes  int64
	PreviewRowLimit int

	// Timeouts
	PassTimeout           time.Duration
	AcquireRequestTimeout time.Duration
}

// NewLimits initializes Limits with sensible fallbacks when values are unset.
func NewLimits(maxConcurrentPasses, maxLiveUploads int) Limits {
	if maxConcurrentPasses <= 0 {
		maxConcurrentPasses = config.DefaultMaxConcurrentPasses
	}
	if maxLiveUploads <= 0 {
		maxLiveUploads = config.DefaultMaxLiveUploads
	}

	return Limits{
		MaxConcurrentPasses:   maxConcurrentPasses,
		MaxLiveUploads:        maxLiveUploads,
		MaxUploadBytes:        config.DefaultMaxUploadBytes,
		PreviewRowLimit:       config.DefaultPreviewRowLimit,
		PassTimeout:           config.DefaultPassTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
	}
}

// LimitsFromConfig applies the configured overrides on top of NewLimits.
func LimitsFromConfig(cfg *config.Config) Limits {
	l := NewLimits(cfg.MaxConcurrentPasses, cfg.MaxLiveUploads)
	if cfg.MaxUploadBytes > 0 {
		l.MaxUploadBytes = cfg.MaxUploadBytes
	}
	if cfg.PreviewRowLimit > 0 {
		l.PreviewRowLimit = cfg.PreviewRowLimit
	}
	if cfg.PassTimeout > 0 {
		l.PassTimeout = cfg.PassTimeout
	}
	return l
}

// Controller coordinates runtime semaphores for pass and upload guardrails.
type Controller struct {
	limits           Limits
	requestSemaphore *semaphore.Weighted
	uploadSemaphore  *semaphore.Weighted
}

// NewController constructs a Controller backed by weighted semaphores.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:           limits,
		requestSemaphore: semaphore.NewWeighted(int64(limits.MaxConcurrentPasses)),
		uploadSemaphore:  semaphore.NewWeighted(int64(limits.MaxLiveUploads)),
	}
}

// AcquireRequest reserves capacity for an incoming pass.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	return c.requestSemaphore.Acquire(ctx, 1)
}

// ReleaseRequest frees previously-acquired request capacity.
func (c *Controller) ReleaseRequest() {
	c.requestSemaphore.Release(1)
}

// AcquireUpload reserves a live upload slot. It fails fast when the store is
// full instead of waiting for an eviction.
func (c *Controller) AcquireUpload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.uploadSemaphore.TryAcquire(1) {
		return ErrUploadsFull
	}
	return nil
}

// ReleaseUpload frees a live upload slot.
func (c *Controller) ReleaseUpload() {
	c.uploadSemaphore.Release(1)
}

// LimitsSnapshot exposes the configured guardrails for telemetry and discovery.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}
