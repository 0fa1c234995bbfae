// Package notice holds the pure matching pipeline: the scan window, candidate
// normalization, interest matching, per-user summaries and record keys.
package notice

import (
	"fmt"
	"strings"
	"time"
)

const compactDate = "20060102"

// DateWindow is the inclusive update-date range scanned by one dispatch run,
// both ends formatted YYYYMMDD.
type DateWindow struct {
	Bgupd string `json:"bgupd"`
	Enupd string `json:"enupd"`
}

// ParseDate accepts YYYY-MM-DD (midnight UTC) or RFC3339 and returns the UTC
// calendar day.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		u := t.UTC()
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// BuildDateWindow anchors on lastSuccess when it parses, else on today, and
// starts one day before the anchor.
func BuildDateWindow(lastSuccess, today string) (DateWindow, error) {
	end, ok := ParseDate(today)
	if !ok {
		return DateWindow{}, fmt.Errorf("invalid today date %q", today)
	}

	anchor := end
	if last, ok := ParseDate(lastSuccess); ok {
		anchor = last
	}

	return DateWindow{
		Bgupd: anchor.AddDate(0, 0, -1).Format(compactDate),
		Enupd: end.Format(compactDate),
	}, nil
}

// Today returns now as a UTC YYYY-MM-DD string.
func Today(now time.Time) string {
	return now.UTC().Format(time.DateOnly)
}
