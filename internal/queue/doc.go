// Package queue persists card captures in SQLite and exposes helpers for
// driving their intake lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stuck-item recovery, and the status
// transitions the workflow manager executes. Queue items capture tenant
// context, upload state, extraction output, and failure detail so stages can
// coordinate without additional state.
//
// The database is working storage for in-flight captures rather than a
// long-term archive; finished cards live in the cards store. Schema changes
// bump the version in schema.go; users clear the database to adopt the new
// schema.
package queue
