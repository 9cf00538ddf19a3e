// Package validation applies plausibility heuristics to extracted card
// fields. Findings are advisory warnings for the review workflow; they never
// block persistence.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"narthex/internal/vision"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	minNameLength  = 2
	minPhoneDigits = 10
	maxPhoneDigits = 11
)

// Check returns human-readable warnings for fields that look misread. An
// empty slice means nothing looked suspicious; fields that are absent are
// never warned about.
func Check(fields vision.Fields) []string {
	var warnings []string

	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		if len([]rune(name)) < minNameLength {
			warnings = append(warnings, fmt.Sprintf("Name %q looks too short to be real", name))
		}
	}

	if fields.Email != nil {
		email := strings.TrimSpace(*fields.Email)
		if !emailRx.MatchString(email) {
			warnings = append(warnings, fmt.Sprintf("Email %q does not look like an address", email))
		}
	}

	if fields.Phone != nil {
		digits := countDigits(*fields.Phone)
		switch {
		case digits < minPhoneDigits:
			warnings = append(warnings, fmt.Sprintf("Phone number has only %d digits (expected %d+)", digits, minPhoneDigits))
		case digits > maxPhoneDigits:
			warnings = append(warnings, fmt.Sprintf("Phone number has %d digits (expected at most %d)", digits, maxPhoneDigits))
		}
	}

	return warnings
}

func countDigits(value string) int {
	count := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			count++
		}
	}
	return count
}
