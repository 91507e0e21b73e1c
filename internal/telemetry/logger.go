package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level   string    // debug, info, warn, error
	Pretty  bool      // console output instead of JSON lines
	Service string    // value of the "service" field
	Out     io.Writer // defaults to os.Stderr so stdio transports stay clean
}

// NewLogger creates the service-tagged structured logger and installs it as
// the package-level zerolog logger.
func NewLogger(cfg LoggerConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	service := cfg.Service
	if service == "" {
		service = "hidash"
	}

	logger := zerolog.New(out).Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()
	log.Logger = logger
	return logger
}
