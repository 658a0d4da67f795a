package availability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inkbook/platform/services/scheduling-service/internal/apperr"
	"github.com/inkbook/platform/services/scheduling-service/internal/model"
	"github.com/inkbook/platform/services/scheduling-service/internal/provider"
	"github.com/inkbook/platform/services/scheduling-service/internal/timewindow"
)

const (
	MinDurationMinutes = 15
	MaxRangeDays       = 93
)

var tracer = otel.Tracer("github.com/inkbook/platform/services/scheduling-service/internal/availability")

// Store is the subset of provider.Source the calculator and validator read.
type Store interface {
	provider.Agendas
	provider.Appointments
	provider.Blocks
}

// Calculator builds day-by-day availability calendars for an artist.
type Calculator struct {
	store Store
	now   func() time.Time
}

func NewCalculator(store Store, now func() time.Time) *Calculator {
	if now == nil {
		now = time.Now
	}
	return &Calculator{store: store, now: now}
}

// FindAvailableSlots returns the artist's bookable slots for every working day
// in [from, to], whole days inclusive. Days without slots are omitted.
func (c *Calculator) FindAvailableSlots(ctx context.Context, artistID string, durationMinutes int, from, to time.Time) (model.AvailabilityCalendar, error) {
	ctx, span := tracer.Start(ctx, "availability.FindAvailableSlots", trace.WithAttributes(
		attribute.String("artist_id", artistID),
		attribute.Int("duration_minutes", durationMinutes),
		attribute.String("from", timewindow.DateKey(from)),
		attribute.String("to", timewindow.DateKey(to)),
	))
	defer span.End()

	cal, err := c.findAvailableSlots(ctx, artistID, durationMinutes, from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("days", len(cal)))
	return cal, nil
}

func (c *Calculator) findAvailableSlots(ctx context.Context, artistID string, durationMinutes int, from, to time.Time) (model.AvailabilityCalendar, error) {
	if err := ValidateDuration(durationMinutes); err != nil {
		return nil, err
	}
	if err := ValidateRange(from, to); err != nil {
		return nil, err
	}
	agenda, err := LoadAgenda(ctx, c.store, artistID)
	if err != nil {
		return nil, err
	}

	rangeStart := timewindow.DayStart(from)
	rangeEnd := timewindow.NextDay(to)

	appointments, err := c.store.FindAppointments(ctx, provider.AppointmentFilter{
		AgendaID:   agenda.ID,
		From:       rangeStart,
		To:         rangeEnd,
		Statuses:   model.BookableBlockingStatuses,
		NotDeleted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	blocks, err := c.store.FindUnavailableBlocks(ctx, agenda.ID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("find unavailable blocks: %w", err)
	}

	hours := HoursFor(agenda)
	duration := time.Duration(durationMinutes) * time.Minute
	now := c.now().UTC()

	var cal model.AvailabilityCalendar
	for _, day := range timewindow.Days(from, to) {
		if !agenda.WorksOn(timewindow.WeekdayCode(day)) {
			continue
		}
		dayStart, dayEnd := day, timewindow.NextDay(day)
		slots := GenerateDaySlots(day, hours, duration,
			appointmentsWithin(appointments, dayStart, dayEnd),
			blocksWithin(blocks, dayStart, dayEnd),
			now,
		)
		if len(slots) == 0 {
			continue
		}
		cal = append(cal, model.DayAvailability{Date: timewindow.DateKey(day), Slots: slots})
	}
	return cal, nil
}

// LoadAgenda fetches the artist's agenda, mapping absence to apperr.ErrNotFound.
func LoadAgenda(ctx context.Context, agendas provider.Agendas, artistID string) (model.Agenda, error) {
	agenda, ok, err := agendas.FindAgenda(ctx, artistID)
	if err != nil {
		return model.Agenda{}, fmt.Errorf("find agenda: %w", err)
	}
	if !ok {
		return model.Agenda{}, apperr.NotFound("agenda for artist", artistID)
	}
	return agenda, nil
}

func ValidateDuration(minutes int) error {
	if minutes < MinDurationMinutes {
		return apperr.InvalidInput("duration", fmt.Sprintf("must be at least %d minutes", MinDurationMinutes))
	}
	return nil
}

func ValidateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return apperr.InvalidInput("date range", "requires both from and to")
	}
	if timewindow.DayStart(to).Before(timewindow.DayStart(from)) {
		return apperr.InvalidInput("date range", "to must not be before from")
	}
	if len(timewindow.Days(from, to)) > MaxRangeDays {
		return apperr.InvalidInput("date range", fmt.Sprintf("must not exceed %d days", MaxRangeDays))
	}
	return nil
}

func appointmentsWithin(all []model.Appointment, start, end time.Time) []model.Appointment {
	var out []model.Appointment
	for _, a := range all {
		if timewindow.Overlaps(a.StartDate, a.EndDate, start, end) {
			out = append(out, a)
		}
	}
	return out
}

func blocksWithin(all []model.UnavailableTimeBlock, start, end time.Time) []model.UnavailableTimeBlock {
	var out []model.UnavailableTimeBlock
	for _, b := range all {
		if timewindow.Overlaps(b.StartDate, b.EndDate, start, end) {
			out = append(out, b)
		}
	}
	return out
}
