package stage

import (
	"narthex/internal/services"
	"narthex/internal/vision"
)

// ParseFields parses the extracted-fields JSON carried on a queue item.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func ParseFields(raw string) (vision.Fields, error) {
	fields, err := vision.DecodeFields(raw)
	if err != nil {
		return vision.Fields{}, services.Wrap(
			services.ErrValidation, "stage", "parse fields",
			"Extracted fields missing or invalid; rerun extraction", err)
	}
	return fields, nil
}
