package core

import (
	"regexp"
	"time"
)

// ISO date pattern matches: 2024-01-15, 2024-01-15T10:30:00, 2024-01-15T10:30:00.000Z, etc.
var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}:\d{2}(\.\d{1,9})?(Z|[+-]\d{2}:?\d{2})?)?$`)

// IsISODateString checks if a string looks like an ISO 8601 date.
func IsISODateString(value string) bool {
	return isoDatePattern.MatchString(value)
}

// ParseISODate parses an ISO 8601 date string to time.Time.
func ParseISODate(value string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z0700",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &time.ParseError{Value: value, Message: "not a valid ISO 8601 date"}
}

// NormalizeTimestamp rewrites a server timestamp as RFC 3339 in UTC.
//
// Values that do not parse as ISO 8601 are returned unchanged; the server
// owns the format and the bridge never rejects it.
func NormalizeTimestamp(value string) string {
	if !IsISODateString(value) {
		return value
	}
	t, err := ParseISODate(value)
	if err != nil {
		return value
	}
	return t.UTC().Format(time.RFC3339Nano)
}
