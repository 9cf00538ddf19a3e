package cards

import "testing"

func TestNormalizePersonName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"José  Núñez", "jose nunez"},
		{"  Jordan   Avery ", "jordan avery"},
		{"SARAH SMITH", "sarah smith"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizePersonName(tc.in); got != tc.want {
			t.Errorf("NormalizePersonName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"(555) 010-4477", "5550104477"},
		{"+1 555 010 4477", "5550104477"},
		{"1-555-010-4477", "5550104477"},
		{"555", "555"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Jordan@Example.COM "); got != "jordan@example.com" {
		t.Fatalf("unexpected email: %q", got)
	}
}
