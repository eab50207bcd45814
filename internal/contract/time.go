package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// relativeTimeRe captures "N [units] ago", e.g. "2 weeks ago".
var relativeTimeRe = regexp.MustCompile(`^(\d+)\s+(year|month|week|day|hour|minute)s?\s+ago$`)

// durationRe captures "N [units]", e.g. "90 days".
var durationRe = regexp.MustCompile(`^(\d+)\s+(year|month|week|day|hour|minute)s?$`)

// ParseRelativeTime converts strings like "2 weeks ago" into a point in the past.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	matches := relativeTimeRe.FindStringSubmatch(s)
	if len(matches) == 0 {
		return time.Time{}, fmt.Errorf("invalid relative time format: %s", s)
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid relative time value: %s", matches[1])
	}
	switch matches[2] {
	case "year":
		return now.AddDate(-value, 0, 0), nil
	case "month":
		return now.AddDate(0, -value, 0), nil
	default:
		return now.Add(-time.Duration(value) * unitDuration(matches[2])), nil
	}
}

// ParseTimeBound accepts an RFC 3339 timestamp or a relative "N units ago" expression.
func ParseTimeBound(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(DateTimeFormat, strings.TrimSpace(s)); err == nil {
		return t, nil
	}
	t, err := ParseRelativeTime(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q. Expected RFC 3339 or 'N [units] ago'", s)
	}
	return t, nil
}

// ParseLookbackDuration converts strings like "3 months" or "720h" into a time.Duration.
// Go duration syntax is tried first; months and years are approximated as 30 and 365 days.
func ParseLookbackDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if duration, err := time.ParseDuration(s); err == nil {
		if duration <= 0 {
			return 0, errors.New("duration must be positive")
		}
		return duration, nil
	}

	s = strings.ToLower(s)
	matches := durationRe.FindStringSubmatch(s)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid duration format: %q", s)
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", matches[1])
	}
	total := time.Duration(value) * unitDuration(matches[2])
	if total <= 0 {
		return 0, errors.New("duration must be positive")
	}
	return total, nil
}

func unitDuration(unit string) time.Duration {
	const day = 24 * time.Hour
	switch unit {
	case "year":
		return 365 * day
	case "month":
		return 30 * day
	case "week":
		return 7 * day
	case "day":
		return day
	case "hour":
		return time.Hour
	default:
		return time.Minute
	}
}
