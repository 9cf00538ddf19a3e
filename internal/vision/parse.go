package vision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseResponse extracts Fields from the model's reply. Models sometimes wrap
// the JSON in prose or a code fence; everything outside the outermost object
// is ignored.
func ParseResponse(raw string) (Fields, error) {
	payload := extractJSONObject(raw)
	if payload == "" {
		return Fields{}, fmt.Errorf("no JSON object in response")
	}

	decoder := json.NewDecoder(strings.NewReader(payload))
	decoder.UseNumber()
	var object map[string]json.RawMessage
	if err := decoder.Decode(&object); err != nil {
		return Fields{}, fmt.Errorf("parse response object: %w", err)
	}
	return CoerceFields(object), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
