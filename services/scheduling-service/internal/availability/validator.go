package availability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inkbook/platform/services/scheduling-service/internal/apperr"
	"github.com/inkbook/platform/services/scheduling-service/internal/model"
	"github.com/inkbook/platform/services/scheduling-service/internal/provider"
	"github.com/inkbook/platform/services/scheduling-service/internal/timewindow"
)

// Verdict is the outcome of validating a proposed booking. An invalid verdict
// is a normal result, not an error.
type Verdict struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

const (
	ReasonNotWorkingDay       = "The artist does not work on this day"
	ReasonOverlapsAppointment = "The requested time overlaps an existing appointment"
	ReasonOverlapsBlockedTime = "The requested time overlaps time the artist has blocked"
	ReasonAlreadyStarted      = "The requested time has already passed"
)

type Validator struct {
	store Store
	now   func() time.Time
}

func NewValidator(store Store, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{store: store, now: now}
}

// ValidateAppointmentTime checks a proposed booking against the artist's
// working days, working hours, the current time, existing appointments and
// blocked time, in that order. The first failing rule decides the reason.
// Today's earliest bookable start is now rounded up to SlotInterval, as in
// GenerateDaySlots.
func (v *Validator) ValidateAppointmentTime(ctx context.Context, artistID string, start time.Time, durationMinutes int) (Verdict, error) {
	ctx, span := tracer.Start(ctx, "availability.ValidateAppointmentTime", trace.WithAttributes(
		attribute.String("artist_id", artistID),
		attribute.Int("duration_minutes", durationMinutes),
	))
	defer span.End()

	verdict, err := v.validate(ctx, artistID, start, durationMinutes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Verdict{}, err
	}
	span.SetAttributes(attribute.Bool("valid", verdict.Valid))
	return verdict, nil
}

func (v *Validator) validate(ctx context.Context, artistID string, start time.Time, durationMinutes int) (Verdict, error) {
	if start.IsZero() {
		return Verdict{}, apperr.InvalidInput("start", "is required")
	}
	if err := ValidateDuration(durationMinutes); err != nil {
		return Verdict{}, err
	}
	agenda, err := LoadAgenda(ctx, v.store, artistID)
	if err != nil {
		return Verdict{}, err
	}

	start = start.UTC()
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	hours := HoursFor(agenda)
	window := hours.Window(start)

	if !agenda.WorksOn(timewindow.WeekdayCode(start)) {
		return invalid(ReasonNotWorkingDay), nil
	}
	if start.Before(window.Start) {
		return invalid(fmt.Sprintf("The appointment starts before working hours (%s)", hours.Opening)), nil
	}
	if end.After(window.End) {
		return invalid(fmt.Sprintf("The appointment ends after working hours (%s)", hours.Closing)), nil
	}
	if now := v.now().UTC(); timewindow.SameDay(start, now) && start.Before(timewindow.CeilTo(now, SlotInterval)) {
		return invalid(ReasonAlreadyStarted), nil
	}

	appointments, err := v.store.FindAppointments(ctx, provider.AppointmentFilter{
		AgendaID:   agenda.ID,
		From:       start,
		To:         end,
		Statuses:   model.BookableBlockingStatuses,
		NotDeleted: true,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("find appointments: %w", err)
	}
	for _, a := range appointments {
		if timewindow.Overlaps(start, end, a.StartDate, a.EndDate) {
			return invalid(ReasonOverlapsAppointment), nil
		}
	}

	blocks, err := v.store.FindOverlapping(ctx, agenda.ID, start, end)
	if err != nil {
		return Verdict{}, fmt.Errorf("find overlapping blocks: %w", err)
	}
	for _, b := range blocks {
		if timewindow.Overlaps(start, end, b.StartDate, b.EndDate) {
			return invalid(ReasonOverlapsBlockedTime), nil
		}
	}
	return Verdict{Valid: true}, nil
}

func invalid(reason string) Verdict {
	return Verdict{Valid: false, Reason: reason}
}
