package config

import (
	"errors"
	"io"
	"log/slog"
	"strings"
)

// Config is the complete runtime configuration.
type Config struct {
	Sandbox SandboxConfig `toml:"sandbox" yaml:"sandbox"`
	Events  EventsConfig  `toml:"events" yaml:"events"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
}

// SandboxConfig controls the script engine's restricted environment.
type SandboxConfig struct {
	// FreezeLibraries makes string, table, math, os and coroutine read-only.
	FreezeLibraries bool `toml:"freeze_libraries" yaml:"freeze_libraries"`

	// AllowCoroutines opens the coroutine library.
	AllowCoroutines bool `toml:"allow_coroutines" yaml:"allow_coroutines"`
}

// EventsConfig controls event dispatch results.
type EventsConfig struct {
	// AlwaysReturnPayload includes the payload in every result,
	// not only in results for cancelled events.
	AlwaysReturnPayload bool `toml:"always_return_payload" yaml:"always_return_payload"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`

	// Format is text or json.
	Format string `toml:"format" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Sandbox: SandboxConfig{
			FreezeLibraries: true,
			AllowCoroutines: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks every setting and returns all problems joined.
func (c Config) Validate() error {
	var errs []error

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, &ValidationError{
			Path:    "logging.format",
			Value:   c.Logging.Format,
			Message: "must be text or json",
		})
	}

	return errors.Join(errs...)
}

// ParseLevel converts a level name to a slog.Level. An empty name is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, &ValidationError{
			Path:    "logging.level",
			Value:   s,
			Message: "must be debug, info, warn or error",
		}
	}
}

// NewLogger builds a logger writing to w at the configured level and format.
// Invalid settings fall back to info and text.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Logging.Level)
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
