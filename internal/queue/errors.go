package queue

import "errors"

// ErrItemInFlight is returned when an operation is refused because the item
// is currently being processed by a worker.
var ErrItemInFlight = errors.New("item is being processed")

// ErrorClassifier allows errors to declare their classification for status
// mapping. The workflow manager uses the kind to decide whether a stage
// failure is worth retrying automatically.
type ErrorClassifier interface {
	ErrorKind() string
}
