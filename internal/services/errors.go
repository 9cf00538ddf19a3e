package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalService = errors.New("external service error")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrTransient       = errors.New("transient failure")
)

// Kind is the coarse classification derived from the sentinel markers.
type Kind string

const (
	KindExternalService Kind = "external_service"
	KindValidation      Kind = "validation"
	KindConfiguration   Kind = "configuration"
	KindNotFound        Kind = "not_found"
	KindTimeout         Kind = "timeout"
	KindTransient       Kind = "transient"
	KindUnknown         Kind = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails carries the classified view of a wrapped stage error.
type ErrorDetails struct {
	Kind    Kind
	Message string
	Cause   error
}

// Details classifies err against the sentinel markers and extracts a
// human-readable message suitable for queue item error fields.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	details := ErrorDetails{Kind: classify(err), Cause: err}
	details.Message = strings.TrimSpace(err.Error())
	return details
}

// IsRetryable reports whether the failure should be offered for user retry
// without operator intervention. Configuration problems are not retryable
// until the configuration changes.
func IsRetryable(err error) bool {
	switch classify(err) {
	case KindConfiguration, KindValidation:
		return false
	default:
		return true
	}
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrExternalService):
		return KindExternalService
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
