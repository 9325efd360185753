// Package slotlog wires zerolog into slotforge's components, the same
// shape cuemby-warren's pkg/log wraps it for its daemon: one global
// logger configured once at startup, component-scoped children handed
// out to everything else.
package slotlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var base zerolog.Logger

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init configures the global logger. The package's init applies the
// defaults (info level, console output); cmd/slotforge's root command
// calls it again with the --log-level and --json-logs settings.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case LevelDebug:
		level = zerolog.DebugLevel
	case LevelWarn:
		level = zerolog.WarnLevel
	case LevelError:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if cfg.JSONOutput {
		base = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	base = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

func init() {
	Init(Config{Level: LevelInfo})
}

// For returns a child logger tagged with component, the unit every
// package-level logger in slotforge is built from.
func For(component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// ForSlot returns a child logger tagged with both component and slot,
// for per-slot components such as the agent host.
func ForSlot(component, slot string) zerolog.Logger {
	return base.With().Str("component", component).Str("slot", slot).Logger()
}
