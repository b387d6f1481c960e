package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the process logger.
type Options struct {
	Level   string    // zerolog level name, defaults to info
	Format  string    // "json" or "console"
	Output  io.Writer // defaults to os.Stderr
	Version string
}

// New builds the process logger. Unknown levels fall back to info.
func New(opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		if parsed, err := zerolog.ParseLevel(opts.Level); err == nil {
			level = parsed
		}
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp().Str("service", "maskproxy")
	if opts.Version != "" {
		ctx = ctx.Str("version", opts.Version)
	}
	return ctx.Logger()
}

// WithComponent returns a child logger annotated with the component name.
func WithComponent(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}
