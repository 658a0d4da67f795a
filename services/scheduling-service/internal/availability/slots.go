package availability

import (
	"time"

	"github.com/inkbook/platform/services/scheduling-service/internal/model"
	"github.com/inkbook/platform/services/scheduling-service/internal/timewindow"
)

// SlotInterval is the cadence at which candidate slots start.
const SlotInterval = 30 * time.Minute

type WorkingHours struct {
	Opening timewindow.Clock
	Closing timewindow.Clock
}

// HoursFor returns the agenda's working hours, falling back to 09:00-17:00 for
// unset or unparseable values.
func HoursFor(agenda model.Agenda) WorkingHours {
	return WorkingHours{
		Opening: timewindow.ClockOr(agenda.WorkingHoursStart, timewindow.DefaultOpening),
		Closing: timewindow.ClockOr(agenda.WorkingHoursEnd, timewindow.DefaultClosing),
	}
}

// Window returns the UTC working interval on day.
func (h WorkingHours) Window(day time.Time) timewindow.Interval {
	return timewindow.Interval{Start: h.Opening.On(day), End: h.Closing.On(day)}
}

// GenerateDaySlots returns the bookable slots of length duration on day.
//
// Candidates start every SlotInterval from opening time; on the day of now the
// first candidate is clamped to now rounded up to the next interval. A slot may
// end exactly at closing time. Candidates overlapping a bookable-blocking
// appointment or an unavailable block are dropped. Output is chronological.
func GenerateDaySlots(day time.Time, hours WorkingHours, duration time.Duration, appointments []model.Appointment, blocks []model.UnavailableTimeBlock, now time.Time) []model.TimeSlot {
	if duration <= 0 {
		return nil
	}
	window := hours.Window(day)
	if !window.End.After(window.Start) {
		return nil
	}

	first := window.Start
	if timewindow.SameDay(day, now) {
		if clamped := timewindow.CeilTo(now.UTC(), SlotInterval); clamped.After(first) {
			first = clamped
		}
	}

	busy := busyIntervals(appointments, blocks)

	var slots []model.TimeSlot
	for t := first; !t.Add(duration).After(window.End); t = t.Add(SlotInterval) {
		end := t.Add(duration)
		if !overlapsAny(t, end, busy) {
			slots = append(slots, model.TimeSlot{StartTime: t, EndTime: end})
		}
	}
	return slots
}

func busyIntervals(appointments []model.Appointment, blocks []model.UnavailableTimeBlock) []timewindow.Interval {
	busy := make([]timewindow.Interval, 0, len(appointments)+len(blocks))
	for _, a := range appointments {
		if a.Deleted() || !model.StatusIn(a.Status, model.BookableBlockingStatuses) {
			continue
		}
		busy = append(busy, timewindow.Interval{Start: a.StartDate, End: a.EndDate})
	}
	for _, b := range blocks {
		busy = append(busy, timewindow.Interval{Start: b.StartDate, End: b.EndDate})
	}
	return busy
}

func overlapsAny(start, end time.Time, busy []timewindow.Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if timewindow.Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
