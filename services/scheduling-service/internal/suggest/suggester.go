package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inkbook/platform/services/scheduling-service/internal/model"
	"github.com/inkbook/platform/services/scheduling-service/internal/timewindow"
)

const (
	DefaultSuggestionCount   = 8
	QuotationSuggestionCount = 3

	InitialLookaheadDays  = 14
	ExtendedLookaheadDays = 30

	recencyWindowDays  = 3
	recencyBonusPerDay = 0.5
	guaranteedTop      = 3
)

type SlotFinder interface {
	FindAvailableSlots(ctx context.Context, artistID string, durationMinutes int, from, to time.Time) (model.AvailabilityCalendar, error)
}

type Scorer interface {
	Score(ctx context.Context, artistID string, slots []model.TimeSlot) ([]model.TimeSlot, error)
}

// Suggester ranks an artist's upcoming free slots, preferring quiet and soon
// times spread over different days.
type Suggester struct {
	finder SlotFinder
	scorer Scorer
	now    func() time.Time
	logger *slog.Logger
}

func NewSuggester(finder SlotFinder, scorer Scorer, now func() time.Time, logger *slog.Logger) *Suggester {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Suggester{finder: finder, scorer: scorer, now: now, logger: logger}
}

// SuggestOptimalTimes returns at most count slots of durationMinutes, ordered
// by adjusted density ascending. count <= 0 means DefaultSuggestionCount.
func (s *Suggester) SuggestOptimalTimes(ctx context.Context, artistID string, durationMinutes, count int) ([]model.TimeSlot, error) {
	if count <= 0 {
		count = DefaultSuggestionCount
	}
	ctx, span := tracer.Start(ctx, "suggest.SuggestOptimalTimes", trace.WithAttributes(
		attribute.String("artist_id", artistID),
		attribute.Int("duration_minutes", durationMinutes),
		attribute.Int("count", count),
	))
	defer span.End()

	out, err := s.suggest(ctx, artistID, durationMinutes, count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("suggested", len(out)))
	return out, nil
}

func (s *Suggester) suggest(ctx context.Context, artistID string, durationMinutes, count int) ([]model.TimeSlot, error) {
	searchStart := s.now().UTC()
	firstDay := timewindow.DayStart(searchStart)
	initialEnd := firstDay.AddDate(0, 0, InitialLookaheadDays-1)

	scored, err := s.scoredRange(ctx, artistID, durationMinutes, searchStart, initialEnd)
	if err != nil {
		return nil, err
	}
	if len(scored) < count {
		extendedEnd := firstDay.AddDate(0, 0, ExtendedLookaheadDays-1)
		s.logger.Debug("extending suggestion lookahead",
			"artist_id", artistID,
			"found", len(scored),
			"wanted", count,
			"until", timewindow.DateKey(extendedEnd),
		)
		more, err := s.scoredRange(ctx, artistID, durationMinutes, initialEnd.AddDate(0, 0, 1), extendedEnd)
		if err != nil {
			return nil, err
		}
		scored = append(scored, more...)
	}

	ApplyRecencyBonus(scored, searchStart)
	SortByDensity(scored)
	return SelectDiverse(scored, count), nil
}

func (s *Suggester) scoredRange(ctx context.Context, artistID string, durationMinutes int, from, to time.Time) ([]model.TimeSlot, error) {
	cal, err := s.finder.FindAvailableSlots(ctx, artistID, durationMinutes, from, to)
	if err != nil {
		return nil, err
	}
	scored, err := s.scorer.Score(ctx, artistID, cal.Slots())
	if err != nil {
		return nil, fmt.Errorf("score slots: %w", err)
	}
	return scored, nil
}

// ApplyRecencyBonus lowers the density of slots starting within three days of
// searchStart by 0.5 per whole day closer than the third.
func ApplyRecencyBonus(slots []model.TimeSlot, searchStart time.Time) {
	cutoff := searchStart.Add(recencyWindowDays * timewindow.Day)
	for i, slot := range slots {
		if !slot.StartTime.Before(cutoff) {
			continue
		}
		daysFromNow := int(slot.StartTime.Sub(searchStart) / timewindow.Day)
		if daysFromNow < 0 {
			daysFromNow = 0
		}
		slots[i] = slot.WithDensity(slot.Score() - recencyBonusPerDay*float64(recencyWindowDays-daysFromNow))
	}
}

// SortByDensity sorts ascending by density; equal densities keep their order.
func SortByDensity(slots []model.TimeSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Score() < slots[j].Score()
	})
}

// SelectDiverse picks up to count slots from a density-sorted list: the best
// three unconditionally, then the best slot of each day not yet represented,
// then whatever is left in order. The result keeps the input order.
func SelectDiverse(sorted []model.TimeSlot, count int) []model.TimeSlot {
	if count <= 0 || len(sorted) == 0 {
		return nil
	}
	used := make([]bool, len(sorted))
	days := map[string]bool{}
	picked := 0
	pick := func(i int) {
		used[i] = true
		days[timewindow.DateKey(sorted[i].StartTime)] = true
		picked++
	}

	for i := 0; i < len(sorted) && picked < guaranteedTop && picked < count; i++ {
		pick(i)
	}
	for i := range sorted {
		if picked >= count {
			break
		}
		if used[i] || days[timewindow.DateKey(sorted[i].StartTime)] {
			continue
		}
		pick(i)
	}
	for i := range sorted {
		if picked >= count {
			break
		}
		if !used[i] {
			pick(i)
		}
	}

	out := make([]model.TimeSlot, 0, picked)
	for i, ok := range used {
		if ok {
			out = append(out, sorted[i])
		}
	}
	return out
}
