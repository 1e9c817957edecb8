package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultEnvPrefix is the prefix of recognised environment variables.
const DefaultEnvPrefix = "SETONIX_"

// envSetting applies one environment value to a Config.
type envSetting func(c *Config, value string) error

// envMapping maps variable names (without prefix) to settings.
var envMapping = map[string]envSetting{
	"ALWAYS_RETURN_PAYLOAD": boolSetting(func(c *Config) *bool { return &c.Events.AlwaysReturnPayload }),
	"FREEZE_LIBRARIES":      boolSetting(func(c *Config) *bool { return &c.Sandbox.FreezeLibraries }),
	"ALLOW_COROUTINES":      boolSetting(func(c *Config) *bool { return &c.Sandbox.AllowCoroutines }),
	"LOG_LEVEL":             stringSetting(func(c *Config) *string { return &c.Logging.Level }),
	"LOG_FORMAT":            stringSetting(func(c *Config) *string { return &c.Logging.Format }),
}

// ApplyEnv overrides settings from environment variables named prefix+KEY,
// e.g. SETONIX_LOG_LEVEL. An empty prefix means DefaultEnvPrefix.
// Unset variables leave the setting unchanged.
func (c *Config) ApplyEnv(prefix string) error {
	return c.applyEnv(prefix, os.LookupEnv)
}

func (c *Config) applyEnv(prefix string, lookup func(string) (string, bool)) error {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	for key, apply := range envMapping {
		name := prefix + key
		val, ok := lookup(name)
		if !ok {
			continue
		}
		if err := apply(c, val); err != nil {
			return fmt.Errorf("environment variable %s: %w", name, err)
		}
	}
	return nil
}

func boolSetting(field func(*Config) *bool) envSetting {
	return func(c *Config, value string) error {
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func stringSetting(field func(*Config) *string) envSetting {
	return func(c *Config, value string) error {
		*field(c) = value
		return nil
	}
}

// parseBool accepts the spellings strconv does plus yes/no and on/off.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}
