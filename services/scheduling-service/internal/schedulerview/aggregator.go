// Package schedulerview assembles an artist's scheduler: appointments with
// their permitted actions, pending quotations, conflicts, deadlines and
// optionally free time.
package schedulerview

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/inkbook/platform/services/scheduling-service/internal/availability"
	"github.com/inkbook/platform/services/scheduling-service/internal/model"
	"github.com/inkbook/platform/services/scheduling-service/internal/permissions"
	"github.com/inkbook/platform/services/scheduling-service/internal/provider"
	"github.com/inkbook/platform/services/scheduling-service/internal/suggest"
	"github.com/inkbook/platform/services/scheduling-service/internal/timewindow"
)

const (
	DefaultDurationMinutes = 60
	MaxSuggestions         = 8
	MaxUpcomingDeadlines   = 5

	// QuotationSuggestionDensity puts proposed quotation times ahead of any
	// computed suggestion.
	QuotationSuggestionDensity = -1000.0

	directResponseWindow = 48 * time.Hour
	proposedDateLeadTime = 24 * time.Hour
	confirmationLeadTime = 24 * time.Hour
)

var tracer = otel.Tracer("github.com/inkbook/platform/services/scheduling-service/internal/schedulerview")

type Store interface {
	provider.Agendas
	provider.Appointments
	provider.Quotations
	provider.Customers
}

type Suggester interface {
	SuggestOptimalTimes(ctx context.Context, artistID string, durationMinutes, count int) ([]model.TimeSlot, error)
}

// Request describes one scheduler build. Permissions is the request-scoped
// memo; a fresh one is created when nil. A zero Actor means the artist
// looking at their own scheduler.
type Request struct {
	ArtistID            string
	Actor               permissions.Actor
	From                time.Time
	To                  time.Time
	IncludeAvailability bool
	IncludeSuggestions  bool
	DurationMinutes     int
	Permissions         *permissions.Loader
}

type Aggregator struct {
	store     Store
	finder    suggest.SlotFinder
	suggester Suggester
	now       func() time.Time
	logger    *slog.Logger
}

func NewAggregator(store Store, finder suggest.SlotFinder, suggester Suggester, now func() time.Time, logger *slog.Logger) *Aggregator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{store: store, finder: finder, suggester: suggester, now: now, logger: logger}
}

func (a *Aggregator) Build(ctx context.Context, req Request) (View, error) {
	ctx, span := tracer.Start(ctx, "schedulerview.Build", trace.WithAttributes(
		attribute.String("artist_id", req.ArtistID),
		attribute.Bool("include_availability", req.IncludeAvailability),
		attribute.Bool("include_suggestions", req.IncludeSuggestions),
	))
	defer span.End()

	view, err := a.build(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return View{}, err
	}
	span.SetAttributes(
		attribute.Int("appointments", len(view.Appointments)),
		attribute.Int("quotations", len(view.Quotations)),
	)
	return view, nil
}

type fetched struct {
	appointments []model.Appointment
	direct       []model.Quotation
	open         []model.Quotation
	customers    map[string]model.Customer
}

func (a *Aggregator) build(ctx context.Context, req Request) (View, error) {
	if err := availability.ValidateRange(req.From, req.To); err != nil {
		return View{}, err
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = DefaultDurationMinutes
	}
	if err := availability.ValidateDuration(req.DurationMinutes); err != nil {
		return View{}, err
	}
	if req.Actor == (permissions.Actor{}) {
		req.Actor = permissions.Actor{UserID: req.ArtistID, Role: model.RoleArtist}
	}
	if req.Permissions == nil {
		req.Permissions = permissions.NewLoader(a.now)
	}

	agenda, err := availability.LoadAgenda(ctx, a.store, req.ArtistID)
	if err != nil {
		return View{}, err
	}

	rangeStart := timewindow.DayStart(req.From)
	rangeEnd := timewindow.NextDay(req.To)
	data, err := a.fetch(ctx, agenda, req.ArtistID, rangeStart, rangeEnd)
	if err != nil {
		return View{}, err
	}

	now := a.now().UTC()
	view := View{
		ArtistID:     req.ArtistID,
		From:         timewindow.DateKey(req.From),
		To:           timewindow.DateKey(req.To),
		Appointments: appointmentItems(data, req.Actor, req.Permissions),
	}
	view.Quotations = quotationItems(data, req.ArtistID, req.DurationMinutes, view.Appointments)

	if req.IncludeAvailability {
		cal, err := a.finder.FindAvailableSlots(ctx, req.ArtistID, req.DurationMinutes, req.From, req.To)
		if err != nil {
			return View{}, fmt.Errorf("availability: %w", err)
		}
		view.Availability = cal
	}
	if req.IncludeSuggestions {
		computed, err := a.suggester.SuggestOptimalTimes(ctx, req.ArtistID, req.DurationMinutes, suggest.DefaultSuggestionCount)
		if err != nil {
			return View{}, fmt.Errorf("suggestions: %w", err)
		}
		view.Suggestions = mergeSuggestions(computed, view.Quotations, now)
	}
	view.Summary = summarize(view, now)

	a.logger.DebugContext(ctx, "scheduler view built",
		"artist_id", req.ArtistID,
		"appointments", len(view.Appointments),
		"quotations", len(view.Quotations),
		"suggestions", len(view.Suggestions),
		"permission_memo_hits", req.Permissions.Hits(),
	)
	return view, nil
}

// fetch loads the range's appointments and both quotation sets concurrently,
// then batch-loads every referenced customer.
func (a *Aggregator) fetch(ctx context.Context, agenda model.Agenda, artistID string, rangeStart, rangeEnd time.Time) (fetched, error) {
	var data fetched

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appts, err := a.store.FindAppointments(gctx, provider.AppointmentFilter{
			AgendaID:   agenda.ID,
			From:       rangeStart,
			To:         rangeEnd,
			Statuses:   model.ActiveStatuses,
			NotDeleted: true,
		})
		if err != nil {
			return fmt.Errorf("find appointments: %w", err)
		}
		sort.SliceStable(appts, func(i, j int) bool { return appts[i].StartDate.Before(appts[j].StartDate) })
		data.appointments = appts
		return nil
	})
	g.Go(func() error {
		direct, err := a.store.FindQuotations(gctx, provider.QuotationFilter{
			ArtistID: artistID,
			Type:     model.QuotationDirect,
			Statuses: model.DirectViewStatuses,
		})
		if err != nil {
			return fmt.Errorf("find direct quotations: %w", err)
		}
		for _, q := range direct {
			start, _, ok := q.ProposedTime(artistID)
			if !ok || (!start.Before(rangeStart) && start.Before(rangeEnd)) {
				data.direct = append(data.direct, q)
			}
		}
		return nil
	})
	g.Go(func() error {
		open, err := a.store.FindOpenQuotationsForArtist(gctx, artistID, rangeStart, rangeEnd)
		if err != nil {
			return fmt.Errorf("find open quotations: %w", err)
		}
		data.open = open
		return nil
	})
	if err := g.Wait(); err != nil {
		return fetched{}, err
	}

	ids := customerIDs(data)
	data.customers = make(map[string]model.Customer, len(ids))
	if len(ids) == 0 {
		return data, nil
	}
	customers, err := a.store.FindCustomers(ctx, ids)
	if err != nil {
		return fetched{}, fmt.Errorf("find customers: %w", err)
	}
	for _, c := range customers {
		data.customers[c.ID] = c
	}
	return data, nil
}

func customerIDs(data fetched) []string {
	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, appt := range data.appointments {
		add(appt.CustomerID)
	}
	for _, q := range data.direct {
		add(q.CustomerID)
	}
	for _, q := range data.open {
		add(q.CustomerID)
	}
	sort.Strings(ids)
	return ids
}

func customerRef(customers map[string]model.Customer, id string) *model.Customer {
	c, ok := customers[id]
	if !ok {
		return nil
	}
	return &c
}

func appointmentItems(data fetched, actor permissions.Actor, loader *permissions.Loader) []AppointmentItem {
	items := make([]AppointmentItem, 0, len(data.appointments))
	for _, appt := range data.appointments {
		blocking := model.StatusIn(appt.Status, model.CalendarBlockingStatuses)
		category := CategoryTentative
		if blocking {
			category = CategoryConfirmed
		}
		items = append(items, AppointmentItem{
			Appointment:   appt,
			Customer:      customerRef(data.customers, appt.CustomerID),
			Actions:       loader.Actions(actor, appt),
			Blocking:      blocking,
			ConflictsWith: []string{},
			Category:      category,
		})
	}

	// conflictsWith lists the overlapping appointments that do not hold their
	// time firmly.
	for i := range items {
		for j := range items {
			if i == j || items[j].Blocking {
				continue
			}
			a, b := items[i].Appointment, items[j].Appointment
			if timewindow.Overlaps(a.StartDate, a.EndDate, b.StartDate, b.EndDate) {
				items[i].ConflictsWith = append(items[i].ConflictsWith, b.ID)
			}
		}
	}
	return items
}

func quotationItems(data fetched, artistID string, defaultMinutes int, appts []AppointmentItem) []QuotationItem {
	all := make([]model.Quotation, 0, len(data.direct)+len(data.open))
	all = append(all, data.direct...)
	all = append(all, data.open...)

	items := make([]QuotationItem, 0, len(all))
	for _, q := range all {
		item := QuotationItem{
			Quotation:           q,
			Customer:            customerRef(data.customers, q.CustomerID),
			ConflictingEventIDs: []string{},
			Category:            Categorize(q),
			ActionDeadline:      ActionDeadline(q, artistID),
		}
		if start, minutes, ok := q.ProposedTime(artistID); ok {
			if minutes <= 0 {
				minutes = defaultMinutes
			}
			end := start.Add(time.Duration(minutes) * time.Minute)
			item.ProposedStart, item.ProposedEnd = &start, &end
			for _, appt := range appts {
				if !appt.Blocking {
					continue
				}
				if timewindow.Overlaps(start, end, appt.Appointment.StartDate, appt.Appointment.EndDate) {
					item.ConflictingEventIDs = append(item.ConflictingEventIDs, appt.Appointment.ID)
				}
			}
			item.HasConflict = len(item.ConflictingEventIDs) > 0
		}
		items = append(items, item)
	}
	return items
}

// Categorize places a quotation on the scheduler. Only direct quotations the
// artist has to answer are ACTIONABLE.
func Categorize(q model.Quotation) Category {
	switch {
	case q.Type == model.QuotationDirect && model.QuotationStatusIn(q.Status, model.ArtistActionableStatuses):
		return CategoryActionable
	case q.Type == model.QuotationOpen:
		return CategoryOpportunity
	default:
		return CategoryTentative
	}
}

// ActionDeadline is 48h after creation for direct quotations, otherwise 24h
// before the proposed date. Nil when neither is known.
func ActionDeadline(q model.Quotation, artistID string) *time.Time {
	if q.Type == model.QuotationDirect && !q.CreatedAt.IsZero() {
		d := q.CreatedAt.UTC().Add(directResponseWindow)
		return &d
	}
	if start, _, ok := q.ProposedTime(artistID); ok {
		d := start.Add(-proposedDateLeadTime)
		return &d
	}
	return nil
}

// mergeSuggestions puts upcoming quotation-proposed times in front of the
// computed suggestions and keeps the best MaxSuggestions.
func mergeSuggestions(computed []model.TimeSlot, quotes []QuotationItem, now time.Time) []model.TimeSlot {
	proposed := map[time.Time]bool{}
	var merged []model.TimeSlot
	for _, q := range quotes {
		if q.ProposedStart == nil || q.ProposedStart.Before(now) || proposed[*q.ProposedStart] {
			continue
		}
		proposed[*q.ProposedStart] = true
		merged = append(merged, model.TimeSlot{
			StartTime: *q.ProposedStart,
			EndTime:   *q.ProposedEnd,
		}.WithDensity(QuotationSuggestionDensity))
	}
	for _, s := range computed {
		if !proposed[s.StartTime] {
			merged = append(merged, s)
		}
	}
	suggest.SortByDensity(merged)
	if len(merged) > MaxSuggestions {
		merged = merged[:MaxSuggestions]
	}
	return merged
}

func summarize(view View, now time.Time) Summary {
	s := Summary{
		Counts: map[Category]int{
			CategoryConfirmed:   0,
			CategoryTentative:   0,
			CategoryActionable:  0,
			CategoryOpportunity: 0,
		},
		UpcomingDeadlines: []Deadline{},
	}
	for _, item := range view.Appointments {
		s.Counts[item.Category]++
		if item.Appointment.Status == model.StatusPendingConfirmation {
			s.UpcomingDeadlines = append(s.UpcomingDeadlines, Deadline{
				Kind:     DeadlineAppointment,
				ID:       item.Appointment.ID,
				Deadline: item.Appointment.StartDate.Add(-confirmationLeadTime),
			})
		}
	}
	for _, item := range view.Quotations {
		s.Counts[item.Category]++
		if item.ActionDeadline != nil {
			s.UpcomingDeadlines = append(s.UpcomingDeadlines, Deadline{
				Kind:     DeadlineQuotation,
				ID:       item.Quotation.ID,
				Deadline: *item.ActionDeadline,
			})
		}
	}

	upcoming := s.UpcomingDeadlines[:0]
	for _, d := range s.UpcomingDeadlines {
		if !d.Deadline.Before(now) {
			upcoming = append(upcoming, d)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].Deadline.Before(upcoming[j].Deadline) })
	if len(upcoming) > MaxUpcomingDeadlines {
		upcoming = upcoming[:MaxUpcomingDeadlines]
	}
	s.UpcomingDeadlines = upcoming

	for i := range view.Suggestions {
		if s.EarliestSuggestion == nil || view.Suggestions[i].StartTime.Before(s.EarliestSuggestion.StartTime) {
			slot := view.Suggestions[i]
			s.EarliestSuggestion = &slot
		}
	}
	return s
}
