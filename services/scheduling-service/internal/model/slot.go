package model

import "time"

// TimeSlot is a candidate bookable interval. Density is nil until scored;
// lower is less crowded.
type TimeSlot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Density   *float64  `json:"density,omitempty"`
}

func (s TimeSlot) Score() float64 {
	if s.Density == nil {
		return 0
	}
	return *s.Density
}

func (s TimeSlot) WithDensity(d float64) TimeSlot {
	s.Density = &d
	return s
}

// DayAvailability is one calendar day's slots, keyed by YYYY-MM-DD (UTC).
type DayAvailability struct {
	Date  string     `json:"date"`
	Slots []TimeSlot `json:"slots"`
}

type AvailabilityCalendar []DayAvailability

func (c AvailabilityCalendar) Slots() []TimeSlot {
	var out []TimeSlot
	for _, d := range c {
		out = append(out, d.Slots...)
	}
	return out
}
