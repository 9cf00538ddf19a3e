package validation

import (
	"strings"
	"testing"

	"narthex/internal/vision"
)

func strPtr(s string) *string { return &s }

func TestCheckCleanFieldsProduceNoWarnings(t *testing.T) {
	warnings := Check(vision.Fields{
		Name:  strPtr("Jordan Avery"),
		Email: strPtr("jordan@example.com"),
		Phone: strPtr("(555) 010-4477"),
	})
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestCheckAbsentFieldsAreIgnored(t *testing.T) {
	if warnings := Check(vision.Fields{}); len(warnings) != 0 {
		t.Fatalf("expected no warnings for empty fields, got %v", warnings)
	}
}

func TestCheckShortPhone(t *testing.T) {
	warnings := Check(vision.Fields{Phone: strPtr("555")})
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	if warnings[0] != "Phone number has only 3 digits (expected 10+)" {
		t.Fatalf("unexpected warning text: %q", warnings[0])
	}
}

func TestCheckLongPhone(t *testing.T) {
	warnings := Check(vision.Fields{Phone: strPtr("5550104477123456")})
	if len(warnings) != 1 || !strings.Contains(warnings[0], "16 digits") {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestCheckElevenDigitPhoneAccepted(t *testing.T) {
	warnings := Check(vision.Fields{Phone: strPtr("+1 555 010 4477")})
	if len(warnings) != 0 {
		t.Fatalf("expected 11-digit phone accepted, got %v", warnings)
	}
}

func TestCheckMalformedEmail(t *testing.T) {
	warnings := Check(vision.Fields{Email: strPtr("jordan-at-example")})
	if len(warnings) != 1 || !strings.Contains(warnings[0], "does not look like an address") {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestCheckShortName(t *testing.T) {
	warnings := Check(vision.Fields{Name: strPtr("J")})
	if len(warnings) != 1 || !strings.Contains(warnings[0], "too short") {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestCheckCollectsMultipleWarnings(t *testing.T) {
	warnings := Check(vision.Fields{
		Name:  strPtr("X"),
		Email: strPtr("nope"),
		Phone: strPtr("12"),
	})
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %v", warnings)
	}
}
