package schedulerview

import (
	"time"

	"github.com/inkbook/platform/services/scheduling-service/internal/model"
	"github.com/inkbook/platform/services/scheduling-service/internal/permissions"
)

type Category string

const (
	CategoryConfirmed   Category = "CONFIRMED"
	CategoryTentative   Category = "TENTATIVE"
	CategoryActionable  Category = "ACTIONABLE"
	CategoryOpportunity Category = "OPPORTUNITY"
)

type AppointmentItem struct {
	Appointment   model.Appointment   `json:"appointment"`
	Customer      *model.Customer     `json:"customer,omitempty"`
	Actions       permissions.Actions `json:"actions"`
	Blocking      bool                `json:"blocking"`
	ConflictsWith []string            `json:"conflicts_with"`
	Category      Category            `json:"category"`
}

type QuotationItem struct {
	Quotation           model.Quotation `json:"quotation"`
	Customer            *model.Customer `json:"customer,omitempty"`
	ProposedStart       *time.Time      `json:"proposed_start,omitempty"`
	ProposedEnd         *time.Time      `json:"proposed_end,omitempty"`
	HasConflict         bool            `json:"has_conflict"`
	ConflictingEventIDs []string        `json:"conflicting_event_ids"`
	Category            Category        `json:"category"`
	ActionDeadline      *time.Time      `json:"action_deadline,omitempty"`
}

type DeadlineKind string

const (
	DeadlineQuotation   DeadlineKind = "QUOTATION"
	DeadlineAppointment DeadlineKind = "APPOINTMENT"
)

// Deadline is the last moment the artist can act on an item.
type Deadline struct {
	Kind     DeadlineKind `json:"kind"`
	ID       string       `json:"id"`
	Deadline time.Time    `json:"deadline"`
}

type Summary struct {
	Counts             map[Category]int `json:"counts"`
	EarliestSuggestion *model.TimeSlot  `json:"earliest_suggestion,omitempty"`
	UpcomingDeadlines  []Deadline       `json:"upcoming_deadlines"`
}

// View is the artist's scheduler for one date range.
type View struct {
	ArtistID     string                     `json:"artist_id"`
	From         string                     `json:"from"`
	To           string                     `json:"to"`
	Appointments []AppointmentItem          `json:"appointments"`
	Quotations   []QuotationItem            `json:"quotations"`
	Availability model.AvailabilityCalendar `json:"availability,omitempty"`
	Suggestions  []model.TimeSlot           `json:"suggestions,omitempty"`
	Summary      Summary                    `json:"summary"`
}
