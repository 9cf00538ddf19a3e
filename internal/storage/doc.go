// Package storage uploads card images to durable object storage through a
// presigned-URL service.
//
// The daemon never holds bucket credentials. It asks the presign endpoint
// for a write-scoped URL bound to {organization, connect-card, side}, PUTs
// the bytes there, and records the returned storage key on the queue item.
package storage
