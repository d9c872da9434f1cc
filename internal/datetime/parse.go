package datetime

import (
	"errors"
	"strings"
	"time"
)

// ErrUnparseable is returned when no known layout matches the input
var ErrUnparseable = errors.New("unrecognized date format")

// Layouts are tried in order; date-only forms come last so that a full
// timestamp is never truncated to midnight.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"20060102T150405Z",
	"20060102T150405",
	"2006-01-02",
	"20060102",
}

// Parse parses a date or date-time string. Values without a zone are read in UTC.
func Parse(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrUnparseable
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrUnparseable
}

// Valid reports whether value is parseable by Parse
func Valid(value string) bool {
	_, err := Parse(value)
	return err == nil
}
