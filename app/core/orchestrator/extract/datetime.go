package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// KeyLayout is the canonical bucket key format, minute resolution, local time.
// Lexicographic order over keys equals chronological order.
const KeyLayout = "2006-01-02T15:04"

var (
	canonicalKeyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}$`)
	isoPrefixRe    = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2})`)
	clock12Re      = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)
	clock24Re      = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

var weekdayNames = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// genericLayouts are tried, in order, when no natural-language rule applies.
var genericLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
	"January 2, 2006 15:04",
	"January 2, 2006",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ResolveDatetime maps a free-form date/time expression to a canonical bucket
// key. It always succeeds; unintelligible input falls back to now.
func ResolveDatetime(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.Format(KeyLayout)
	}
	if canonicalKeyRe.MatchString(raw) {
		return raw
	}

	lower := strings.ToLower(raw)
	if strings.Contains(lower, "tomorrow") {
		return applyClock(raw, now.AddDate(0, 0, 1)).Format(KeyLayout)
	}
	if strings.Contains(lower, "today") {
		return applyClock(raw, now).Format(KeyLayout)
	}

	for i, name := range weekdayNames {
		if !strings.Contains(lower, name) {
			continue
		}
		daysUntil := i - int(now.Weekday())
		if daysUntil <= 0 {
			daysUntil += 7 // next occurrence, never today
		}
		return applyClock(raw, now.AddDate(0, 0, daysUntil)).Format(KeyLayout)
	}

	for _, layout := range genericLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, now.Location()); err == nil {
			return parsed.Format(KeyLayout)
		}
	}

	if m := isoPrefixRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}

	return now.Format(KeyLayout)
}

// applyClock overlays a time-of-day found in raw onto the date of base.
// 12-hour wins over 24-hour; with neither, base's own clock is kept.
func applyClock(raw string, base time.Time) time.Time {
	if m := clock12Re.FindStringSubmatch(raw); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes := 0
		if m[2] != "" {
			minutes, _ = strconv.Atoi(m[2])
		}
		switch strings.ToLower(m[3]) {
		case "pm":
			if hours != 12 {
				hours += 12
			}
		case "am":
			if hours == 12 {
				hours = 0
			}
		}
		return time.Date(base.Year(), base.Month(), base.Day(), hours, minutes, 0, 0, base.Location())
	}
	if m := clock24Re.FindStringSubmatch(raw); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		return time.Date(base.Year(), base.Month(), base.Day(), hours, minutes, 0, 0, base.Location())
	}
	return base
}

// ParseKey converts a canonical bucket key back into a local time.
func ParseKey(key string) (time.Time, bool) {
	parsed, err := time.ParseInLocation(KeyLayout, key, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// FormatKey renders a bucket key as a human-readable group header.
func FormatKey(key string) string {
	parsed, ok := ParseKey(key)
	if !ok {
		return key
	}
	return parsed.Format("Mon, Jan 2 2006 3:04 PM")
}
