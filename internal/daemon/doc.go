// Package daemon hosts the long-running intake process: it enforces
// single-instance execution with a lock file, runs the workflow manager,
// and exposes the HTTP API used by the CLI and capture clients.
package daemon
