// Package services provides shared error classification and context
// annotation used by the intake stages and the workflow manager.
//
// Stage implementations wrap failures with one of the exported sentinel
// markers so the orchestrator can distinguish retryable transport problems
// from configuration mistakes, and loggers can derive structured fields
// from the annotated context.
package services
