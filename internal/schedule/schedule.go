// ABOUTME: Day codes, hour formatting, and input validation for scheduled reports
// ABOUTME: Shared by the web console forms and the CLI schedule commands

// Package schedule formats and validates scheduled report fields.
package schedule

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Day is a weekday as the backend encodes it.
type Day struct {
	Code  string
	Label string
}

// Week lists the day codes in display order.
var Week = []Day{
	{"mon", "Monday"},
	{"tue", "Tuesday"},
	{"wed", "Wednesday"},
	{"thu", "Thursday"},
	{"fri", "Friday"},
	{"sat", "Saturday"},
	{"sun", "Sunday"},
}

var (
	// ErrNoDays rejects a schedule without any day selected.
	ErrNoDays = errors.New("select at least one day")
	// ErrHourRange rejects an hour outside 0..23.
	ErrHourRange = errors.New("hour must be between 0 and 23")
)

func lookup(code string) (Day, bool) {
	i := slices.IndexFunc(Week, func(d Day) bool { return d.Code == code })
	if i < 0 {
		return Day{}, false
	}
	return Week[i], true
}

// ShortLabel returns the three-letter label for code, or code itself when
// it is not a known day.
func ShortLabel(code string) string {
	if d, ok := lookup(code); ok {
		return d.Label[:3]
	}
	return code
}

// FormatDays renders a comma-separated day list as "Mon, Wed".
func FormatDays(day string) string {
	if day == "" {
		return ""
	}
	parts := strings.Split(day, ",")
	for i, p := range parts {
		parts[i] = ShortLabel(strings.TrimSpace(p))
	}
	return strings.Join(parts, ", ")
}

// FormatHour renders an hour on the 12-hour clock.
func FormatHour(hour int) string {
	switch {
	case hour == 0:
		return "12:00 AM"
	case hour < 12:
		return fmt.Sprintf("%d:00 AM", hour)
	case hour == 12:
		return "12:00 PM"
	default:
		return fmt.Sprintf("%d:00 PM", hour-12)
	}
}

// ParseDays normalizes day input. Each value may itself be comma separated;
// codes and full or short English names are accepted in any case. The result
// is deduplicated and in week order.
func ParseDays(values ...string) ([]string, error) {
	seen := make(map[string]bool)
	for _, v := range values {
		for _, raw := range strings.Split(v, ",") {
			raw = strings.ToLower(strings.TrimSpace(raw))
			if raw == "" {
				continue
			}
			code, ok := dayCode(raw)
			if !ok {
				return nil, fmt.Errorf("unknown day %q", raw)
			}
			seen[code] = true
		}
	}
	if len(seen) == 0 {
		return nil, ErrNoDays
	}
	days := make([]string, 0, len(seen))
	for _, d := range Week {
		if seen[d.Code] {
			days = append(days, d.Code)
		}
	}
	return days, nil
}

func dayCode(s string) (string, bool) {
	for _, d := range Week {
		if s == d.Code || s == strings.ToLower(d.Label) {
			return d.Code, true
		}
	}
	return "", false
}

// ValidateHour checks that hour is 0..23.
func ValidateHour(hour int) error {
	if hour < 0 || hour > 23 {
		return ErrHourRange
	}
	return nil
}

// ParseHour parses and validates an hour field.
func ParseHour(s string) (int, error) {
	h, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, ErrHourRange
	}
	return h, ValidateHour(h)
}

// Summary shortens a report query for list views.
func Summary(query string, limit int) string {
	r := []rune(query)
	if len(r) <= limit {
		return query
	}
	return string(r[:limit]) + "..."
}
