package timewindow

import (
	"testing"
	"time"
)

func TestOverlapsHalfOpen(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	hour := base.Add(time.Hour)

	if !Overlaps(base, hour, base.Add(30*time.Minute), hour.Add(30*time.Minute)) {
		t.Fatal("expected partial overlap to overlap")
	}
	if Overlaps(base, hour, hour, hour.Add(time.Hour)) {
		t.Fatal("touching intervals must not overlap")
	}
	if Overlaps(hour, hour.Add(time.Hour), base, hour) {
		t.Fatal("touching intervals must not overlap (reversed)")
	}
	outer := Interval{Start: base.Add(-time.Hour), End: hour.Add(time.Hour)}
	if !outer.Overlaps(Interval{Start: base, End: hour}) || !outer.Contains(Interval{Start: base, End: hour}) {
		t.Fatal("expected containing interval to overlap and contain")
	}
}

func TestWeekdayCode(t *testing.T) {
	cases := map[string]string{
		"2026-03-02": "1", // Monday
		"2026-03-06": "5",
		"2026-03-07": "6",
		"2026-03-08": "7", // Sunday
	}
	for key, want := range cases {
		day, err := ParseDateKey(key)
		if err != nil {
			t.Fatalf("parse %s: %v", key, err)
		}
		if got := WeekdayCode(day); got != want {
			t.Fatalf("expected %s for %s, got %s", want, key, got)
		}
	}

	// Sunday 23:30 in UTC-5 is Monday in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	if got := WeekdayCode(time.Date(2026, 3, 8, 23, 30, 0, 0, loc)); got != "1" {
		t.Fatalf("expected UTC weekday 1, got %s", got)
	}
}

func TestDayBoundaries(t *testing.T) {
	ts := time.Date(2026, 3, 2, 15, 4, 5, 6, time.UTC)
	if got := DayStart(ts); !got.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day start %s", got)
	}
	if got := NextDay(ts); !got.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next day %s", got)
	}
	if DateKey(ts) != "2026-03-02" {
		t.Fatalf("unexpected date key %s", DateKey(ts))
	}
	days := Days(ts, ts.AddDate(0, 0, 2))
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	if !days[2].Equal(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last day %s", days[2])
	}
}

func TestCeilTo(t *testing.T) {
	step := 30 * time.Minute
	aligned := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	if got := CeilTo(aligned, step); !got.Equal(aligned) {
		t.Fatalf("aligned value must be unchanged, got %s", got)
	}
	if got := CeilTo(aligned.Add(time.Second), step); !got.Equal(aligned.Add(step)) {
		t.Fatalf("expected 11:00, got %s", got.Format(time.RFC3339))
	}
	if got := CeilTo(aligned.Add(-29*time.Minute), step); !got.Equal(aligned) {
		t.Fatalf("expected 10:30, got %s", got.Format(time.RFC3339))
	}
}

func TestClockParsing(t *testing.T) {
	c, err := ParseClock("08:45")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Hour != 8 || c.Minute != 45 || c.String() != "08:45" {
		t.Fatalf("unexpected clock %+v", c)
	}
	if _, err := ParseClock("25:00"); err == nil {
		t.Fatal("expected error for invalid hour")
	}
	if got := ClockOr("", DefaultOpening); got != DefaultOpening {
		t.Fatalf("expected default opening, got %s", got)
	}
	if got := ClockOr("nope", DefaultClosing); got != DefaultClosing {
		t.Fatalf("expected default closing, got %s", got)
	}
	day := time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC)
	if got := c.On(day); !got.Equal(time.Date(2026, 3, 2, 8, 45, 0, 0, time.UTC)) {
		t.Fatalf("unexpected clock on day: %s", got)
	}
}
