// Package timewindow holds the date arithmetic shared by the scheduling engine.
// Every function works in UTC.
package timewindow

import (
	"fmt"
	"strconv"
	"time"
)

const (
	Day           = 24 * time.Hour
	DateKeyLayout = "2006-01-02"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [i.Start, i.End) and [o.Start, o.End) intersect.
func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i.Start, i.End, o.Start, o.End)
}

func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Overlaps is the half-open test: [aStart,aEnd) overlaps [bStart,bEnd) iff aStart < bEnd && bStart < aEnd.
// Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// DayStart returns midnight UTC of t's UTC calendar day.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDay returns midnight UTC of the day after t.
func NextDay(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 1)
}

func SameDay(a, b time.Time) bool {
	return DayStart(a).Equal(DayStart(b))
}

// WeekdayCode maps t's UTC weekday to "1" (Monday) .. "7" (Sunday).
func WeekdayCode(t time.Time) string {
	wd := int(t.UTC().Weekday())
	if wd == 0 {
		wd = 7
	}
	return strconv.Itoa(wd)
}

func DateKey(t time.Time) string {
	return t.UTC().Format(DateKeyLayout)
}

func ParseDateKey(s string) (time.Time, error) {
	return time.ParseInLocation(DateKeyLayout, s, time.UTC)
}

// Days returns midnight UTC for every calendar day from from's day to to's day inclusive.
func Days(from, to time.Time) []time.Time {
	start := DayStart(from)
	end := DayStart(to)
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// CeilTo rounds t up to the next multiple of step since the Unix epoch. Aligned
// values are returned unchanged.
func CeilTo(t time.Time, step time.Duration) time.Time {
	if step <= 0 {
		return t
	}
	floor := t.Truncate(step)
	if floor.Equal(t) {
		return t
	}
	return floor.Add(step)
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

var (
	DefaultOpening = Clock{Hour: 9}
	DefaultClosing = Clock{Hour: 17}
)

func (c Clock) On(day time.Time) time.Time {
	d := DayStart(day)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, 0, 0, time.UTC)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(raw string) (Clock, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return Clock{}, fmt.Errorf("parse clock %q: %w", raw, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// ClockOr parses raw, returning fallback when raw is empty or malformed.
func ClockOr(raw string, fallback Clock) Clock {
	if raw == "" {
		return fallback
	}
	c, err := ParseClock(raw)
	if err != nil {
		return fallback
	}
	return c
}
