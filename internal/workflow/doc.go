// Package workflow coordinates the intake pipeline.
//
// A Manager owns a pool of workers that claim queued captures and walk them
// through the upload, extraction, and persistence stages. Claims are atomic
// in SQLite, so workers never race over an item. Heartbeats mark in-flight
// work; a maintenance loop reclaims items whose worker died, rolling them
// back to the start of their stage.
//
// Processing is gated on session ownership: captures left behind by a
// previous daemon run hold the pipeline until the operator resumes or
// discards them.
package workflow
