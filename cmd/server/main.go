package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/hidash/config"
	"github.com/vinodismyname/hidash/internal/dataset"
	"github.com/vinodismyname/hidash/internal/filter"
	"github.com/vinodismyname/hidash/internal/groups"
	"github.com/vinodismyname/hidash/internal/pipeline"
	"github.com/vinodismyname/hidash/internal/registry"
	"github.com/vinodismyname/hidash/internal/runtime"
	"github.com/vinodismyname/hidash/internal/security"
	httpserver "github.com/vinodismyname/hidash/internal/server"
	"github.com/vinodismyname/hidash/internal/telemetry"
	"github.com/vinodismyname/hidash/internal/uploads"
	"github.com/vinodismyname/hidash/pkg/version"
)

func main() {
	var (
		useStdio        bool
		addr            string
		shutdownTimeout time.Duration
	)

	flag.BoolVar(&useStdio, "stdio", false, "Run the MCP tools over stdio instead of the HTTP server")
	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides HIDASH_ADDR)")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", config.DefaultShutdownTimeout, "Graceful shutdown timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.Addr = addr
	}

	// Logs go to stderr so the stdio transport keeps stdout to itself.
	logger := telemetry.NewLogger(telemetry.LoggerConfig{Level: cfg.LogLevel, Pretty: cfg.Pretty})
	ctx := logger.WithContext(context.Background())

	layout := groups.DefaultLayout()
	if cfg.LayoutFile != "" {
		if layout, err = groups.LoadLayout(cfg.LayoutFile); err != nil {
			logger.Fatal().Err(err).Str("file", cfg.LayoutFile).Msg("load column layout")
		}
	}
	mode, err := filter.ParseMode(cfg.BucketMode)
	if err != nil {
		logger.Fatal().Err(err).Msg("bucket mode")
	}
	pipe := pipeline.New(layout, mode, dataset.Options{SheetName: cfg.SheetName}, logger)

	limits := runtime.LimitsFromConfig(cfg)
	controller := runtime.NewController(limits)

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Str("revision", version.Revision()).
		Str("bucket_mode", string(mode)).
		Int("layout_groups", len(layout.Groups)).
		Int("max_concurrent_passes", limits.MaxConcurrentPasses).
		Int("max_live_uploads", limits.MaxLiveUploads).
		Int64("max_upload_bytes", limits.MaxUploadBytes).
		Dur("pass_timeout", limits.PassTimeout).
		Bool("stdio", useStdio).
		Msg("server bootstrap configured")

	if useStdio {
		if err := serveStdio(logger, cfg, pipe, controller); err != nil {
			// Use stderr for transport errors so clients don't misinterpret output
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	serveHTTP(logger, cfg, pipe, controller, shutdownTimeout)
}

// serveStdio exposes the dashboard tools over MCP stdio. Path-based loading
// requires an allow-list, so startup fails without one.
func serveStdio(logger zerolog.Logger, cfg *config.Config, pipe *pipeline.Pipeline, controller *runtime.Controller) error {
	secMgr, err := security.NewManagerFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("security: %w", err)
	}
	if err := secMgr.ValidateConfig(); err != nil {
		return fmt.Errorf("%w; set HIDASH_ALLOWED_DIRS", err)
	}
	logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Msg("security allow-list configured")

	srv := server.NewMCPServer(
		"City Healthiness Index Dashboard",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(telemetry.NewHooks(logger)),
		server.WithToolHandlerMiddleware(runtime.NewMiddleware(controller).ToolMiddleware),
	)

	toolRegistry := registry.New()
	registry.RegisterDashboardTools(srv, toolRegistry, &registry.Dashboard{
		Pipeline: pipe,
		Security: secMgr,
		Limits:   controller.LimitsSnapshot(),
	})
	logger.Info().Strs("tools", toolRegistry.Names()).Msg("tools registered")

	return server.ServeStdio(srv)
}

func serveHTTP(logger zerolog.Logger, cfg *config.Config, pipe *pipeline.Pipeline, controller *runtime.Controller, shutdownTimeout time.Duration) {
	limits := controller.LimitsSnapshot()
	store := uploads.NewStore(cfg.UploadIdleTTL, config.DefaultUploadCleanupEvery, limits.MaxUploadBytes, controller, nil)
	store.Start()

	srv := httpserver.New(httpserver.Config{
		Addr:     cfg.Addr,
		Log:      logger,
		Pipeline: pipe,
		Store:    store,
		Runtime:  controller,
		Version:  version.Version(),
		DevMode:  cfg.DevMode,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := store.Close(ctx); err != nil {
		logger.Error().Err(err).Msg("upload store close")
	}
	logger.Info().Msg("server stopped")
}
