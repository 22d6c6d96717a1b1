// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

const (
	timeOfDayLayout = "3:04 PM"
	dateTimeLayout  = "Mon, Jan 2, 3:04 PM"
)

// timestampLayouts are tried in order when parsing backend timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a backend timestamp.
func ParseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders raw for display relative to now.
//
// A timestamp on the same calendar day as now and less than 24 hours away is
// shown as time of day only ("10:00 AM"); anything else gets a short weekday
// and date ("Mon, Jan 1, 10:00 AM"). The calendar day is taken in now's
// location. Empty or unparseable input renders as "".
func FormatTimestamp(raw string, now time.Time) string {
	if raw == "" {
		return ""
	}
	t, ok := ParseTimestamp(raw)
	if !ok {
		return ""
	}
	t = t.In(now.Location())

	diff := now.Sub(t)
	if diff < 0 {
		diff = -diff
	}
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	if diff < 24*time.Hour && ty == ny && tm == nm && td == nd {
		return t.Format(timeOfDayLayout)
	}
	return t.Format(dateTimeLayout)
}
