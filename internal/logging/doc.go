// Package logging builds the slog loggers used across the daemon and CLI.
//
// It standardizes structured field keys, derives per-item fields from the
// request context, and provides console and JSON handlers selected by
// configuration.
package logging
