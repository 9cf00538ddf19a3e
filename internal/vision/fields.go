package vision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Fields holds the structured data extracted from one card. Every field is
// optional; a card with nothing legible still persists.
type Fields struct {
	Name             *string  `json:"name,omitempty"`
	Email            *string  `json:"email,omitempty"`
	Phone            *string  `json:"phone,omitempty"`
	Address          *string  `json:"address,omitempty"`
	PrayerRequest    *string  `json:"prayer_request,omitempty"`
	FirstTimeVisitor *bool    `json:"first_time_visitor,omitempty"`
	AgeGroup         *string  `json:"age_group,omitempty"`
	FamilyInfo       *string  `json:"family_info,omitempty"`
	AdditionalNotes  *string  `json:"additional_notes,omitempty"`
	Interests        []string `json:"interests,omitempty"`
}

// IsEmpty reports whether no field carries a value.
func (f Fields) IsEmpty() bool {
	return f.Name == nil && f.Email == nil && f.Phone == nil && f.Address == nil &&
		f.PrayerRequest == nil && f.FirstTimeVisitor == nil && f.AgeGroup == nil &&
		f.FamilyInfo == nil && f.AdditionalNotes == nil && len(f.Interests) == 0
}

// Encode serializes fields for storage on a queue item.
func (f Fields) Encode() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(data), nil
}

// DecodeFields parses previously stored fields JSON. An empty string decodes
// to the zero value.
func DecodeFields(raw string) (Fields, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Fields{}, nil
	}
	var fields Fields
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return Fields{}, fmt.Errorf("decode fields: %w", err)
	}
	return fields, nil
}

// CoerceFields converts an untyped JSON object into Fields. Values with an
// unexpected shape become null rather than failing the whole card. Applying
// it twice yields the same result.
func CoerceFields(raw map[string]json.RawMessage) Fields {
	fields := Fields{
		Name:             coerceString(raw["name"]),
		Email:            coerceString(raw["email"]),
		Phone:            coerceString(raw["phone"]),
		Address:          coerceString(raw["address"]),
		PrayerRequest:    coerceString(raw["prayer_request"]),
		FirstTimeVisitor: coerceBool(raw["first_time_visitor"]),
		AgeGroup:         coerceString(raw["age_group"]),
		FamilyInfo:       coerceString(raw["family_info"]),
		AdditionalNotes:  coerceString(raw["additional_notes"]),
		Interests:        coerceStringList(raw["interests"]),
	}
	if fields.FirstTimeVisitor == nil {
		// Some cards label the checkbox "visit_status"; accept both spellings.
		fields.FirstTimeVisitor = coerceVisitStatus(raw["visit_status"])
	}
	return fields
}

func coerceString(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "null") {
			return nil
		}
		return &s
	}
	// Numbers occasionally come back for phone fields.
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		s := n.String()
		return &s
	}
	return nil
}

func coerceBool(raw json.RawMessage) *bool {
	if len(raw) == 0 {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return &b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "y", "first time", "first-time":
			v := true
			return &v
		case "false", "no", "n", "returning":
			v := false
			return &v
		}
	}
	return nil
}

func coerceVisitStatus(raw json.RawMessage) *bool {
	if len(raw) == 0 {
		return nil
	}
	if b := coerceBool(raw); b != nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "first_time", "first time", "new":
			v := true
			return &v
		case "returning", "member", "regular":
			v := false
			return &v
		}
	}
	return nil
}

func coerceStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, entry := range list {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				out = append(out, entry)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	// A lone string becomes a single-entry list.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		return []string{s}
	}
	return nil
}
