package util

import "strings"

// TrimSpaceFields trims whitespace from each value, preserving order.
func TrimSpaceFields(fields ...string) []string {
	result := make([]string, len(fields))
	for i, field := range fields {
		result[i] = strings.TrimSpace(field)
	}
	return result
}

// TrimAndLower normalizes a driver or format name.
func TrimAndLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TrimEmptyCheck trims whitespace and reports whether anything is left.
func TrimEmptyCheck(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	return trimmed, trimmed != ""
}

// TrimWithDefault trims whitespace and returns def if empty.
func TrimWithDefault(s, def string) string {
	if trimmed, ok := TrimEmptyCheck(s); ok {
		return trimmed
	}
	return def
}
