package storage

import (
	"fmt"
	"strings"

	"narthex/internal/services"
)

// allowedImageTypes are the MIME types accepted for card captures.
var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
	"image/heic": {},
}

// ValidateImage rejects non-image content and oversized uploads before any
// network traffic happens.
func ValidateImage(contentType string, sizeBytes, maxBytes int64) error {
	normalized := strings.TrimSpace(strings.ToLower(contentType))
	if idx := strings.Index(normalized, ";"); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	if _, ok := allowedImageTypes[normalized]; !ok {
		return services.Wrap(services.ErrValidation, "storage", "validate image",
			fmt.Sprintf("Content type %q is not an accepted image type", contentType), nil)
	}
	if sizeBytes <= 0 {
		return services.Wrap(services.ErrValidation, "storage", "validate image",
			"Image is empty", nil)
	}
	if maxBytes > 0 && sizeBytes > maxBytes {
		return services.Wrap(services.ErrValidation, "storage", "validate image",
			fmt.Sprintf("Image is %d bytes, above the %d byte limit", sizeBytes, maxBytes), nil)
	}
	return nil
}
