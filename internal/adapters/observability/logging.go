package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "sigtrip-wrapper"

// NewLogger returns a zerolog Logger tagged with service and version.
// APP_ENV=dev (or development) uses a human-friendly console writer.
func NewLogger(env, version string) zerolog.Logger {
	return NewLoggerTo(os.Stdout, env, version)
}

func NewLoggerTo(w io.Writer, env, version string) zerolog.Logger {
	if env == "dev" || env == "development" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(w).With().Timestamp().Str("service", serviceName)
	if version != "" {
		ctx = ctx.Str("version", version)
	}
	return ctx.Logger()
}
