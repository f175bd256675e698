package utils

import (
	"time"
)

// Now returns current time (useful for mocking in tests)
var Now = time.Now

// NormalizeSlot converts t to UTC and drops everything below the minute.
func NormalizeSlot(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// ParseSlot parses an RFC 3339 timestamp and normalizes it to a UTC minute.
func ParseSlot(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return NormalizeSlot(t), nil
}
