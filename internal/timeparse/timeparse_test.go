package timeparse

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %q: %v", name, err)
	}
	return loc
}

func TestParse_TomorrowAtTime(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, loc)

	got, tz, ok := Parse("tomorrow 2pm", "America/New_York", now)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if tz != "America/New_York" {
		t.Fatalf("tz = %q", tz)
	}
	want := time.Date(2026, 8, 1, 14, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParse_BareHourRollsToTomorrowIfPast(t *testing.T) {
	loc := mustLoc(t, "UTC")
	now := time.Date(2026, 7, 31, 15, 0, 0, 0, loc)

	got, _, ok := Parse("2pm", "UTC", now)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	want := time.Date(2026, 8, 1, 14, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParse_BareHourStaysTodayIfFuture(t *testing.T) {
	loc := mustLoc(t, "UTC")
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, loc)

	got, _, ok := Parse("2pm", "UTC", now)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	want := time.Date(2026, 7, 31, 14, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParse_ExplicitAbbreviationOverridesDefault(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	got, tz, ok := Parse("9am EST", "UTC", now)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if tz != "America/New_York" {
		t.Fatalf("tz = %q, want America/New_York", tz)
	}
	if got.Hour() != 9 {
		t.Fatalf("hour = %d, want 9 (in resolved zone)", got.Hour())
	}
}

func TestParse_RelativeOffset(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	got, _, ok := Parse("in 2 hours", "UTC", now)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	want := now.Add(2 * time.Hour)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParse_Weekday_NextOccurrenceStrictlyAfterToday(t *testing.T) {
	loc := mustLoc(t, "UTC")
	// 2026-07-31 is a Friday.
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, loc)

	got, _, ok := Parse("friday 9am", "UTC", now)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	want := time.Date(2026, 8, 7, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParse_Unparseable(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	_, _, ok := Parse("just some words", "UTC", now)
	if ok {
		t.Fatalf("expected ok=false")
	}
}

func TestFormatISO8601_UTC(t *testing.T) {
	got := FormatISO8601(time.Date(2026, 7, 31, 14, 0, 0, 0, time.UTC))
	if got != "2026-07-31T14:00:00Z" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatISO8601_Offset(t *testing.T) {
	loc := time.FixedZone("UTC-08:00", -8*3600)
	got := FormatISO8601(time.Date(2026, 7, 31, 14, 0, 0, 0, loc))
	if got != "2026-07-31T14:00:00-08:00" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatForDisplay(t *testing.T) {
	cases := []struct {
		h, m int
		want string
	}{
		{0, 0, "12am"},
		{9, 0, "9am"},
		{12, 0, "12pm"},
		{14, 30, "2:30pm"},
	}
	for _, c := range cases {
		got := FormatForDisplay(time.Date(2026, 7, 31, c.h, c.m, 0, 0, time.UTC), false)
		if got != c.want {
			t.Errorf("hour=%d min=%d: got %q want %q", c.h, c.m, got, c.want)
		}
	}
}

func TestResolveTZAbbreviation(t *testing.T) {
	name, ok := ResolveTZAbbreviation("pst")
	if !ok || name != "America/Los_Angeles" {
		t.Fatalf("got %q, %v", name, ok)
	}
	_, ok = ResolveTZAbbreviation("XYZ")
	if ok {
		t.Fatalf("expected not found")
	}
}

func TestParseLocation_UTCOffset(t *testing.T) {
	loc, err := ParseLocation("+05:30")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	name, offset := time.Now().In(loc).Zone()
	if offset != 5*3600+30*60 {
		t.Fatalf("offset = %d", offset)
	}
	_ = name
}
