package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process configuration resolved from the environment.
type Config struct {
	Addr     string
	LogLevel string
	Pretty   bool
	DevMode  bool

	MaxConcurrentPasses int
	MaxLiveUploads      int
	MaxUploadBytes      int64
	PreviewRowLimit     int
	PassTimeout         time.Duration
	UploadIdleTTL       time.Duration

	BucketMode string
	LayoutFile string // optional YAML column-group layout
	SheetName  string // worksheet read from .xlsx uploads; first sheet when empty

	AllowedDirs []string // roots for path-based loading over MCP
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:                getEnv("HIDASH_ADDR", DefaultAddr),
		LogLevel:            strings.ToLower(getEnv("HIDASH_LOG_LEVEL", "info")),
		Pretty:              getEnvAsBool("HIDASH_LOG_PRETTY", false),
		DevMode:             getEnvAsBool("HIDASH_DEV_MODE", false),
		MaxConcurrentPasses: getEnvAsInt("HIDASH_MAX_CONCURRENT", DefaultMaxConcurrentPasses),
		MaxLiveUploads:      getEnvAsInt("HIDASH_MAX_UPLOADS", DefaultMaxLiveUploads),
		MaxUploadBytes:      int64(getEnvAsInt("HIDASH_MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),
		PreviewRowLimit:     getEnvAsInt("HIDASH_PAGE_SIZE", DefaultPreviewRowLimit),
		PassTimeout:         getEnvAsDuration("HIDASH_PASS_TIMEOUT", DefaultPassTimeout),
		UploadIdleTTL:       getEnvAsDuration("HIDASH_UPLOAD_TTL", DefaultUploadIdleTTL),
		BucketMode:          strings.ToLower(getEnv("HIDASH_BUCKET_MODE", DefaultBucketMode)),
		LayoutFile:          getEnv("HIDASH_LAYOUT_FILE", ""),
		SheetName:           getEnv("HIDASH_SHEET", ""),
	}
	if list := os.Getenv("HIDASH_ALLOWED_DIRS"); list != "" {
		cfg.AllowedDirs = filepath.SplitList(list)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.BucketMode {
	case BucketModeOverride, BucketModeIntersect:
	default:
		return fmt.Errorf("config: HIDASH_BUCKET_MODE must be %q or %q, got %q", BucketModeOverride, BucketModeIntersect, c.BucketMode)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unsupported log level %q", c.LogLevel)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: HIDASH_MAX_UPLOAD_BYTES must be > 0")
	}
	if c.PreviewRowLimit <= 0 {
		return fmt.Errorf("config: HIDASH_PAGE_SIZE must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvAsBool(key string, fallback bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
