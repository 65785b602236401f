package model

import "time"

// TimestampLayout is the ISO-8601 form used for every persisted timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Backup is an immutable timestamped snapshot of a collection.
type Backup struct {
	Key       int64      `json:"key"`
	Data      Collection `json:"data"`
	Timestamp time.Time  `json:"timestamp"`
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses timestamps written by FormatTimestamp and the
// RFC3339 variants found in older data. It returns the zero time on failure.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
