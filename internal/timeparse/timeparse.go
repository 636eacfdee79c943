// Package timeparse resolves natural-language time fragments ("tomorrow 2pm", "9am EST",
// "in 2 hours") against a user default timezone into tz-aware instants (§4.1), and formats
// instants back for display. Grounded on the teacher's internal/infra/timeutil package for
// the IANA/offset parsing shape, generalized here to also cover the closed set of timezone
// abbreviations and relative/weekday fragments the original Python timezone.py handled.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// abbreviations maps the closed set of supported timezone abbreviations to IANA names
// (§4.1). Ambiguous abbreviations (EST/EDT, CST/CDT, ...) both resolve to the IANA zone
// that observes the correct offset for whichever half of the year time.LoadLocation is
// asked about, matching the original's one-abbreviation-per-region approach.
var abbreviations = map[string]string{
	"EST": "America/New_York", "EDT": "America/New_York",
	"CST": "America/Chicago", "CDT": "America/Chicago",
	"MST": "America/Denver", "MDT": "America/Denver",
	"PST": "America/Los_Angeles", "PDT": "America/Los_Angeles",
	"AKST": "America/Anchorage", "AKDT": "America/Anchorage",
	"HST": "Pacific/Honolulu",
	"GMT": "Europe/London", "BST": "Europe/London",
	"CET": "Europe/Paris", "CEST": "Europe/Paris",
	"EET": "Europe/Helsinki", "EEST": "Europe/Helsinki",
	"UTC": "UTC",
	"IST": "Asia/Kolkata",
	"JST": "Asia/Tokyo",
	"AEST": "Australia/Sydney", "AEDT": "Australia/Sydney",
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

var (
	reClockTime = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	reRelative  = regexp.MustCompile(`(?i)\bin\s+(\d+)\s*(minute|hour|day|week)s?\b`)
	reTrailingTZ = regexp.MustCompile(`(?i)\b(` + tzAlternation() + `)\b\s*$`)
)

func tzAlternation() string {
	names := make([]string, 0, len(abbreviations))
	for k := range abbreviations {
		names = append(names, k)
	}
	// Longest-first so e.g. "AEDT" isn't shadowed by a shorter overlapping alternative.
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if len(names[j]) > len(names[i]) {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	return strings.Join(names, "|")
}

// ResolveTZAbbreviation looks up an explicit trailing abbreviation, returning the IANA
// name and true on match.
func ResolveTZAbbreviation(abbrev string) (string, bool) {
	name, ok := abbreviations[strings.ToUpper(strings.TrimSpace(abbrev))]
	return name, ok
}

// Parse resolves a natural-language time fragment to a tz-aware instant, given the user's
// default IANA timezone and the "now" instant to compute relative offsets from. Returns
// ok=false if nothing recognizable was found (§4.1: caller treats absence as "no date
// specified").
func Parse(text string, defaultTZ string, now time.Time) (result time.Time, resolvedTZName string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, "", false
	}

	tzName := defaultTZ
	if m := reTrailingTZ.FindStringSubmatch(text); m != nil {
		if name, found := ResolveTZAbbreviation(m[1]); found {
			tzName = name
			text = strings.TrimSpace(text[:len(text)-len(m[0])])
		}
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc = time.UTC
		tzName = "UTC"
	}
	nowInLoc := now.In(loc)

	lower := strings.ToLower(text)

	if m := reRelative.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		var d time.Duration
		switch m[2] {
		case "minute":
			d = time.Duration(n) * time.Minute
		case "hour":
			d = time.Duration(n) * time.Hour
		case "day":
			d = time.Duration(n) * 24 * time.Hour
		case "week":
			d = time.Duration(n) * 7 * 24 * time.Hour
		}
		return nowInLoc.Add(d), tzName, true
	}

	baseDate := nowInLoc
	hasExplicitDate := false
	weekdayNamed := false

	switch {
	case strings.Contains(lower, "tomorrow"):
		baseDate = nowInLoc.AddDate(0, 0, 1)
		hasExplicitDate = true
	case strings.Contains(lower, "today"):
		baseDate = nowInLoc
		hasExplicitDate = true
	default:
		for name, wd := range weekdays {
			if strings.Contains(lower, name) {
				baseDate = nextWeekday(nowInLoc, wd)
				hasExplicitDate = true
				weekdayNamed = true
				break
			}
		}
	}

	clockMatch := reClockTime.FindStringSubmatch(lower)
	if clockMatch == nil {
		if hasExplicitDate {
			d := time.Date(baseDate.Year(), baseDate.Month(), baseDate.Day(), 0, 0, 0, 0, loc)
			return d, tzName, true
		}
		return time.Time{}, "", false
	}

	hour, _ := strconv.Atoi(clockMatch[1])
	minute := 0
	if clockMatch[2] != "" {
		minute, _ = strconv.Atoi(clockMatch[2])
	}
	ampm := strings.ToLower(clockMatch[3])
	switch {
	case ampm == "pm" && hour < 12:
		hour += 12
	case ampm == "am" && hour == 12:
		hour = 0
	}
	if hour > 23 || minute > 59 {
		if hasExplicitDate {
			d := time.Date(baseDate.Year(), baseDate.Month(), baseDate.Day(), 0, 0, 0, 0, loc)
			return d, tzName, true
		}
		return time.Time{}, "", false
	}

	result = time.Date(baseDate.Year(), baseDate.Month(), baseDate.Day(), hour, minute, 0, 0, loc)

	// Bare "H[am|pm]" with no explicit date: resolve to today, rolling to tomorrow if past.
	if !hasExplicitDate && result.Before(nowInLoc) {
		result = result.AddDate(0, 0, 1)
	}

	// A weekday naming today whose time is not still ahead resolves to next week's.
	if weekdayNamed && !result.After(nowInLoc) {
		result = result.AddDate(0, 0, 7)
	}

	return result, tzName, true
}

// nextWeekday returns the next occurrence of wd strictly after from's date, unless from's
// own weekday matches, in which case from's date is returned (time-of-day is still to be
// resolved by the caller against "now").
func nextWeekday(from time.Time, wd time.Weekday) time.Time {
	if from.Weekday() == wd {
		return from
	}
	daysAhead := (int(wd) - int(from.Weekday()) + 7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	return from.AddDate(0, 0, daysAhead)
}

// FormatISO8601 renders t per §4.1: offset form "…±HH:MM", UTC form using "Z".
func FormatISO8601(t time.Time) string {
	if t.Location() == time.UTC || t.Format("-07:00") == "+00:00" {
		return t.UTC().Format("2006-01-02T15:04:05Z")
	}
	return t.Format("2006-01-02T15:04:05-07:00")
}

// FormatForDisplay renders t as a short human string like "2pm" or "2:30pm", optionally
// suffixed with the zone abbreviation (§9's "always show what you interpreted").
func FormatForDisplay(t time.Time, includeTZ bool) string {
	hour := t.Hour()
	minute := t.Minute()

	var timeStr, ampm string
	switch {
	case hour == 0:
		timeStr, ampm = "12", "am"
	case hour < 12:
		timeStr, ampm = strconv.Itoa(hour), "am"
	case hour == 12:
		timeStr, ampm = "12", "pm"
	default:
		timeStr, ampm = strconv.Itoa(hour-12), "pm"
	}
	if minute > 0 {
		timeStr = fmt.Sprintf("%s:%02d", timeStr, minute)
	}
	result := timeStr + ampm
	if includeTZ {
		abbrev := t.Format("MST")
		result = result + " " + abbrev
	}
	return result
}

// ParseLocation resolves an IANA name or a UTC-offset form ("+03:00", "UTC+3", "Z") to a
// *time.Location, adapted from the teacher's timeutil.ParseLocation.
func ParseLocation(value string) (*time.Location, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, fmt.Errorf("timeparse: empty timezone")
	}
	if loc, err := time.LoadLocation(v); err == nil {
		return loc, nil
	}
	if loc, ok := parseUTCOffset(v); ok {
		return loc, nil
	}
	return nil, fmt.Errorf("timeparse: invalid timezone %q: not an IANA name or UTC offset", value)
}

var reUTCOffset = regexp.MustCompile(`^([+-])\s*(\d{1,2})(?::?(\d{2}))?$`)

func parseUTCOffset(value string) (*time.Location, bool) {
	v := strings.ToUpper(strings.TrimSpace(value))
	if v == "Z" || v == "UTC" || v == "GMT" {
		return time.FixedZone("UTC+00:00", 0), true
	}
	v = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(v, "UTC"), "GMT"))
	m := reUTCOffset.FindStringSubmatch(v)
	if m == nil {
		return nil, false
	}
	sign := 1
	if m[1] == "-" {
		sign = -1
	}
	hours, err := strconv.Atoi(m[2])
	if err != nil || hours < 0 || hours > 14 {
		return nil, false
	}
	mins := 0
	if m[3] != "" {
		mins, err = strconv.Atoi(m[3])
		if err != nil || mins < 0 || mins > 59 {
			return nil, false
		}
	}
	offset := sign * (hours*3600 + mins*60)
	name := fmt.Sprintf("UTC%+03d:%02d", sign*hours, mins)
	return time.FixedZone(name, offset), true
}
