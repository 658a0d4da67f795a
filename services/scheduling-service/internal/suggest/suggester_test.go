package suggest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/inkbook/platform/services/scheduling-service/internal/availability"
	"github.com/inkbook/platform/services/scheduling-service/internal/model"
	"github.com/inkbook/platform/services/scheduling-service/internal/provider"
	"github.com/inkbook/platform/services/scheduling-service/internal/provider/memstore"
)

// monday is 2026-03-02, a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newStore(days ...string) *memstore.Store {
	if len(days) == 0 {
		days = []string{"1", "2", "3", "4", "5"}
	}
	s := memstore.New()
	s.PutAgenda(model.Agenda{
		ID:                "agenda-1",
		ArtistID:          "artist-1",
		WorkingHoursStart: "09:00",
		WorkingHoursEnd:   "17:00",
		WorkingDays:       days,
	})
	return s
}

func newSuggester(store *memstore.Store, now time.Time) (*Suggester, *countingFinder) {
	clock := func() time.Time { return now }
	finder := &countingFinder{inner: availability.NewCalculator(store, clock)}
	return NewSuggester(finder, NewDensityScorer(store, 4), clock, nil), finder
}

type countingFinder struct {
	inner SlotFinder
	calls int
}

func (f *countingFinder) FindAvailableSlots(ctx context.Context, artistID string, durationMinutes int, from, to time.Time) (model.AvailabilityCalendar, error) {
	f.calls++
	return f.inner.FindAvailableSlots(ctx, artistID, durationMinutes, from, to)
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDensity(t *testing.T) {
	slot := model.TimeSlot{StartTime: monday.Add(12 * time.Hour), EndTime: monday.Add(13 * time.Hour)}
	nearby := []model.Appointment{
		{StartDate: monday.Add(13 * time.Hour)},
		{StartDate: monday.Add(12 * time.Hour)},
		{StartDate: monday.Add(15 * time.Hour)},
		{StartDate: monday.Add(8*time.Hour + 30*time.Minute)},
	}
	got := Density(slot, nearby)
	want := (1 - 1.0/3) + 1
	if !approx(got, want) {
		t.Fatalf("expected density %.4f, got %.4f", want, got)
	}
	if Density(slot, nil) != 0 {
		t.Fatal("expected zero density with no appointments")
	}
}

func TestDensityScorer_ScoresInOrder(t *testing.T) {
	store := newStore()
	store.AddAppointment(model.Appointment{
		ID: "a1", AgendaID: "agenda-1", Status: model.StatusConfirmed,
		StartDate: monday.Add(13 * time.Hour), EndDate: monday.Add(14 * time.Hour),
	})
	store.AddAppointment(model.Appointment{
		ID: "a2", AgendaID: "agenda-1", Status: model.StatusPendingConfirmation,
		StartDate: monday.Add(13 * time.Hour), EndDate: monday.Add(14 * time.Hour),
	})
	var slots []model.TimeSlot
	for h := 9; h <= 16; h++ {
		start := monday.Add(time.Duration(h) * time.Hour)
		slots = append(slots, model.TimeSlot{StartTime: start, EndTime: start.Add(time.Hour)})
	}

	scored, err := NewDensityScorer(store, 3).Score(context.Background(), "artist-1", slots)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if len(scored) != len(slots) {
		t.Fatalf("expected %d scored slots, got %d", len(slots), len(scored))
	}
	for i, s := range scored {
		if !s.StartTime.Equal(slots[i].StartTime) {
			t.Fatalf("slot %d moved: %s", i, s.StartTime.Format(time.RFC3339))
		}
		if s.Density == nil {
			t.Fatalf("slot %d has no density", i)
		}
		want := math.Max(0, 1-math.Abs(float64(9+i-13))/3)
		if !approx(*s.Density, want) {
			t.Fatalf("slot %d: expected density %.4f, got %.4f", i, want, *s.Density)
		}
	}
	if slots[0].Density != nil {
		t.Fatal("input slots must not be mutated")
	}
}

type failingAppointments struct {
	*memstore.Store
	err error
}

func (f failingAppointments) FindAppointments(context.Context, provider.AppointmentFilter) ([]model.Appointment, error) {
	return nil, f.err
}

func TestDensityScorer_PropagatesProviderError(t *testing.T) {
	boom := errors.New("timeout")
	scorer := NewDensityScorer(failingAppointments{Store: newStore(), err: boom}, 2)
	slots := []model.TimeSlot{{StartTime: monday.Add(9 * time.Hour), EndTime: monday.Add(10 * time.Hour)}}

	if _, err := scorer.Score(context.Background(), "artist-1", slots); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestApplyRecencyBonus(t *testing.T) {
	searchStart := monday.Add(8 * time.Hour)
	slots := []model.TimeSlot{
		{StartTime: monday.Add(9 * time.Hour)},
		{StartTime: monday.AddDate(0, 0, 1).Add(9 * time.Hour)},
		{StartTime: monday.AddDate(0, 0, 2).Add(9 * time.Hour)},
		{StartTime: monday.AddDate(0, 0, 3).Add(9 * time.Hour)},
	}
	ApplyRecencyBonus(slots, searchStart)

	want := []float64{-1.5, -1.0, -0.5, 0}
	for i, s := range slots {
		if !approx(s.Score(), want[i]) {
			t.Fatalf("slot %d: expected %.1f, got %.4f", i, want[i], s.Score())
		}
	}
	if slots[3].Density != nil {
		t.Fatal("slot outside the recency window should stay unscored")
	}
}

func TestSelectDiverse(t *testing.T) {
	at := func(day, hour int, density float64) model.TimeSlot {
		start := monday.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
		return model.TimeSlot{StartTime: start, EndTime: start.Add(time.Hour)}.WithDensity(density)
	}
	sorted := []model.TimeSlot{
		at(0, 9, 0), at(0, 10, 0), at(0, 11, 0), at(0, 12, 0.1), at(0, 13, 0.2),
		at(1, 9, 0.3), at(1, 10, 0.4), at(2, 9, 0.5),
	}

	got := SelectDiverse(sorted, 5)
	wantIdx := []int{0, 1, 2, 5, 7}
	if len(got) != len(wantIdx) {
		t.Fatalf("expected %d slots, got %d", len(wantIdx), len(got))
	}
	for i, idx := range wantIdx {
		if !got[i].StartTime.Equal(sorted[idx].StartTime) {
			t.Fatalf("position %d: expected %s, got %s", i,
				sorted[idx].StartTime.Format(time.RFC3339), got[i].StartTime.Format(time.RFC3339))
		}
	}

	// Once every day is represented the rest fills in density order.
	got = SelectDiverse(sorted, 7)
	wantIdx = []int{0, 1, 2, 3, 4, 5, 7}
	for i, idx := range wantIdx {
		if !got[i].StartTime.Equal(sorted[idx].StartTime) {
			t.Fatalf("fill position %d: expected %s, got %s", i,
				sorted[idx].StartTime.Format(time.RFC3339), got[i].StartTime.Format(time.RFC3339))
		}
	}

	if got := SelectDiverse(sorted, 2); len(got) != 2 || !got[1].StartTime.Equal(sorted[1].StartTime) {
		t.Fatalf("expected the two best slots, got %+v", got)
	}
	if got := SelectDiverse(nil, 3); got != nil {
		t.Fatalf("expected nil for no candidates, got %+v", got)
	}
}

func TestSuggestOptimalTimes_PrefersSoonAndSpreadsDays(t *testing.T) {
	store := newStore()
	s, finder := newSuggester(store, monday.Add(8*time.Hour))

	got, err := s.SuggestOptimalTimes(context.Background(), "artist-1", 60, 0)
	if err != nil {
		t.Fatalf("SuggestOptimalTimes failed: %v", err)
	}
	if len(got) != DefaultSuggestionCount {
		t.Fatalf("expected %d suggestions, got %d", DefaultSuggestionCount, len(got))
	}
	if finder.calls != 1 {
		t.Fatalf("expected no lookahead extension, got %d searches", finder.calls)
	}

	want := []time.Time{
		monday.Add(9 * time.Hour),
		monday.Add(9*time.Hour + 30*time.Minute),
		monday.Add(10 * time.Hour),
		monday.AddDate(0, 0, 1).Add(9 * time.Hour),
		monday.AddDate(0, 0, 2).Add(9 * time.Hour),
		monday.AddDate(0, 0, 3).Add(9 * time.Hour),
		monday.AddDate(0, 0, 4).Add(9 * time.Hour),
		monday.AddDate(0, 0, 7).Add(9 * time.Hour),
	}
	for i := range want {
		if !got[i].StartTime.Equal(want[i]) {
			t.Fatalf("position %d: expected %s, got %s", i,
				want[i].Format(time.RFC3339), got[i].StartTime.Format(time.RFC3339))
		}
		if i > 0 && got[i].Score() < got[i-1].Score() {
			t.Fatalf("suggestions not ordered by density at %d", i)
		}
	}
}

func TestSuggestOptimalTimes_AvoidsBusyTimes(t *testing.T) {
	store := newStore()
	// Fill Monday to Wednesday mornings so the recency bonus competes with density.
	for d := 0; d < 3; d++ {
		day := monday.AddDate(0, 0, d)
		store.AddAppointment(model.Appointment{
			ID: "busy", AgendaID: "agenda-1", Status: model.StatusConfirmed,
			StartDate: day.Add(9 * time.Hour), EndDate: day.Add(12 * time.Hour),
		})
	}
	s, _ := newSuggester(store, monday.Add(8*time.Hour))

	got, err := s.SuggestOptimalTimes(context.Background(), "artist-1", 60, 4)
	if err != nil {
		t.Fatalf("SuggestOptimalTimes failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 suggestions, got %d", len(got))
	}
	for _, slot := range got {
		if slot.Density == nil {
			t.Fatalf("suggestion %s has no density", slot.StartTime.Format(time.RFC3339))
		}
		for d := 0; d < 3; d++ {
			day := monday.AddDate(0, 0, d)
			if slot.StartTime.Before(day.Add(12*time.Hour)) && day.Add(9*time.Hour).Before(slot.EndTime) {
				t.Fatalf("suggestion %s overlaps a confirmed appointment", slot.StartTime.Format(time.RFC3339))
			}
		}
	}
}

func TestSuggestOptimalTimes_ExtendsLookahead(t *testing.T) {
	// Only Mondays are worked and the duration fills the whole day, so the
	// first two weeks hold two candidates.
	store := newStore("1")
	s, finder := newSuggester(store, monday.Add(8*time.Hour))

	got, err := s.SuggestOptimalTimes(context.Background(), "artist-1", 480, 8)
	if err != nil {
		t.Fatalf("SuggestOptimalTimes failed: %v", err)
	}
	if finder.calls != 2 {
		t.Fatalf("expected an extended search, got %d searches", finder.calls)
	}
	if len(got) != 5 {
		t.Fatalf("expected the five Mondays in 30 days, got %d", len(got))
	}
	if !got[0].StartTime.Equal(monday.Add(9 * time.Hour)) {
		t.Fatalf("expected today first, got %s", got[0].StartTime.Format(time.RFC3339))
	}
}

func TestSuggestOptimalTimes_UnknownArtist(t *testing.T) {
	s, _ := newSuggester(newStore(), monday)
	if _, err := s.SuggestOptimalTimes(context.Background(), "nobody", 60, 3); err == nil {
		t.Fatal("expected an error for an artist without agenda")
	}
}
