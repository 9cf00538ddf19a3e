// Package config loads, normalizes, and validates the TOML configuration
// shared by the narthexd daemon and the narthex CLI.
package config
