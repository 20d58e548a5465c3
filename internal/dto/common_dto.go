package dto

import (
	"encoding/json"
	"strings"
)

// ParseStringList converts user-supplied "array-ish" input into a list.
// Accepted shapes: a JSON-encoded array string, or a comma-separated string.
// Unparsable input yields an empty list, never an error.
func ParseStringList(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}

	var parsed []string
	if err := json.Unmarshal([]byte(value), &parsed); err == nil {
		return compact(parsed)
	}
	if strings.HasPrefix(value, "[") {
		// Looked like JSON but was not valid; treat as unparsable.
		return []string{}
	}

	return compact(strings.Split(value, ","))
}

// ParseStringValues flattens repeated form values through ParseStringList,
// so a native array of keys, a JSON-encoded array string, and a
// comma-separated string all normalise to the same shape.
func ParseStringValues(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		result = append(result, ParseStringList(value)...)
	}
	return result
}

// StringList accepts a native JSON array or any string form that
// ParseStringList understands.
type StringList []string

// UnmarshalJSON implements the lenient list contract.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*l = compact(items)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*l = ParseStringList(raw)
		return nil
	}
	*l = []string{}
	return nil
}

func compact(items []string) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// BulkIDsRequest carries the id set for bulk restore and purge.
type BulkIDsRequest struct {
	IDs StringList `json:"ids"`
}
