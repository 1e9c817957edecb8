package plugin

import (
	"log/slog"

	"github.com/dshills/setonix/internal/config"
)

// options holds construction settings.
type options struct {
	name   string
	logger *slog.Logger
	config config.Config

	// alwaysPayload overrides config.Events.AlwaysReturnPayload when set.
	alwaysPayload *bool
}

// Option configures a LuaPlugin.
type Option func(*options)

// WithName sets the name used in logs. The default is derived from the ID.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConfig applies sandbox and event settings from cfg.
// WithAlwaysReturnPayload takes precedence over cfg in any order.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithAlwaysReturnPayload includes the payload in every RunEvent result,
// not only when a handler cancelled the event. It overrides the value
// supplied through WithConfig regardless of option order.
func WithAlwaysReturnPayload(always bool) Option {
	return func(o *options) {
		o.alwaysPayload = &always
	}
}
