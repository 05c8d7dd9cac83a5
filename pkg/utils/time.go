package utils

import "time"

// Now returns the current time in UTC timezone
func Now() time.Time {
	return time.Now().UTC()
}

// FormatISO8601 formats a time.Time to ISO8601 format in UTC
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatDate formats a time.Time as a calendar date in UTC, the form used
// inside alert and confirmation message bodies.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
