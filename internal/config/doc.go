// Package config provides runtime configuration for the plugin system.
//
// Configuration is resolved in three steps, later steps overriding earlier:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file (Load, LoadFromReader)
//  3. Environment variables (ApplyEnv)
//
// Example TOML:
//
//	[sandbox]
//	freeze_libraries = true
//	allow_coroutines = true
//
//	[events]
//	always_return_payload = false
//
//	[logging]
//	level = "info"
//	format = "text"
//
// The same keys are accepted in YAML. Unknown keys are rejected so that a
// misspelt sandbox setting cannot silently fall back to its default.
package config
