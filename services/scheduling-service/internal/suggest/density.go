package suggest

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/inkbook/platform/services/scheduling-service/internal/availability"
	"github.com/inkbook/platform/services/scheduling-service/internal/model"
	"github.com/inkbook/platform/services/scheduling-service/internal/provider"
)

// DensityWindow is how far either side of a slot appointments still count.
const DensityWindow = 3 * time.Hour

const defaultConcurrency = 8

var tracer = otel.Tracer("github.com/inkbook/platform/services/scheduling-service/internal/suggest")

type ScorerStore interface {
	provider.Agendas
	provider.Appointments
}

// DensityScorer rates how crowded the time around each slot already is.
type DensityScorer struct {
	store       ScorerStore
	concurrency int
}

// NewDensityScorer returns a scorer issuing at most concurrency provider
// queries at once; values below 1 use the default of 8.
func NewDensityScorer(store ScorerStore, concurrency int) *DensityScorer {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &DensityScorer{store: store, concurrency: concurrency}
}

// Score returns a copy of slots with Density set, in the input order.
func (s *DensityScorer) Score(ctx context.Context, artistID string, slots []model.TimeSlot) ([]model.TimeSlot, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	ctx, span := tracer.Start(ctx, "suggest.Score", trace.WithAttributes(
		attribute.String("artist_id", artistID),
		attribute.Int("slots", len(slots)),
	))
	defer span.End()

	agenda, err := availability.LoadAgenda(ctx, s.store, artistID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	out, err := s.scoreForAgenda(ctx, agenda.ID, slots)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (s *DensityScorer) scoreForAgenda(ctx context.Context, agendaID string, slots []model.TimeSlot) ([]model.TimeSlot, error) {
	out := make([]model.TimeSlot, len(slots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, slot := range slots {
		g.Go(func() error {
			nearby, err := s.store.FindAppointments(gctx, provider.AppointmentFilter{
				AgendaID:   agendaID,
				From:       slot.StartTime.Add(-DensityWindow),
				To:         slot.EndTime.Add(DensityWindow),
				Statuses:   model.BookableBlockingStatuses,
				NotDeleted: true,
			})
			if err != nil {
				return fmt.Errorf("find appointments near %s: %w", slot.StartTime.Format(time.RFC3339), err)
			}
			out[i] = slot.WithDensity(Density(slot, nearby))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Density sums max(0, 1 - |Δh|/3) over the appointments, where Δh is the
// distance in hours between the slot start and the appointment start.
func Density(slot model.TimeSlot, nearby []model.Appointment) float64 {
	var density float64
	for _, a := range nearby {
		hours := math.Abs(slot.StartTime.Sub(a.StartDate).Hours())
		if w := 1 - hours/DensityWindow.Hours(); w > 0 {
			density += w
		}
	}
	return density
}
