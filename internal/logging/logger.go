// Package logging configures the zerolog loggers used across desflat.
//
// Logs always go to stderr (or the configured writer) so that flattened
// output on stdout stays clean.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EnvLevel names the environment variable consulted when no level is given.
const EnvLevel = "DESFLAT_LOG_LEVEL"

// Canonical field names.
const (
	FieldComponent = "component"
	FieldSource    = "source"
	FieldDigest    = "digest"
	FieldRunID     = "run_id"
	FieldPath      = "path"
)

// Config captures options for building a logger.
type Config struct {
	Level   string    // optional level ("debug", "info", ...)
	Output  io.Writer // defaults to os.Stderr
	Console bool      // human-readable output instead of JSON lines
}

var (
	mu   sync.RWMutex
	base = zerolog.Nop()
)

// ParseLevel resolves a level name, falling back to DESFLAT_LOG_LEVEL and
// then to warn. Unknown names fall back the same way.
func ParseLevel(name string) zerolog.Level {
	for _, candidate := range []string{name, os.Getenv(EnvLevel)} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if lvl, err := zerolog.ParseLevel(strings.ToLower(candidate)); err == nil {
			return lvl
		}
	}
	return zerolog.WarnLevel
}

// New builds a logger without touching global state.
func New(cfg Config) zerolog.Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	if cfg.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: true}
	}
	return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// Configure replaces the process-wide base logger.
func Configure(cfg Config) zerolog.Logger {
	l := New(cfg)
	mu.Lock()
	base = l
	mu.Unlock()
	return l
}

// Base returns the process-wide logger. It discards everything until
// Configure is called.
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child of the base logger annotated with component.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}
