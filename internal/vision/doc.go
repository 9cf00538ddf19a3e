// Package vision extracts structured contact fields from connect card
// images using the Anthropic Messages API.
//
// The Client sends the card image with an extraction prompt and parses the
// model's JSON reply into Fields. Model output is never trusted: every field
// is coerced to its declared type or dropped to null before it leaves this
// package, so malformed shapes cannot reach persistence.
package vision
