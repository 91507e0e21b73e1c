package config

import "time"

// Default runtime limits and guardrails for the healthiness index dashboard.
// Every value can be overridden through the environment (see Load).
// They are referenced by internal/runtime and internal/uploads.

const (
	// Listener
	DefaultAddr = ":8501"

	// Concurrency
	DefaultMaxConcurrentPasses = 8
	DefaultMaxLiveUploads      = 16

	// Payload and row limits
	DefaultMaxUploadBytes  = 32 << 20 // 32MiB per file
	DefaultPreviewRowLimit = 50       // rows per page for API/MCP section previews
)

const (
	// Timeouts
	DefaultPassTimeout           = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
	DefaultShutdownTimeout       = 5 * time.Second
)

const (
	// Upload handle lifecycle
	DefaultUploadIdleTTL      = 30 * time.Minute
	DefaultUploadCleanupEvery = time.Minute
)

const (
	// BucketModeOverride evaluates index buckets against the region-filtered
	// rows, so a bucket selection replaces any city selection.
	BucketModeOverride = "override"
	// BucketModeIntersect evaluates index buckets against the city-filtered rows.
	BucketModeIntersect = "intersect"

	DefaultBucketMode = BucketModeOverride
)
