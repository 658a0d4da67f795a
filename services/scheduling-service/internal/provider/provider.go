// Package provider declares the data contracts the scheduling engine reads
// through. Implementations live elsewhere (storage, cache, memstore).
package provider

import (
	"context"
	"time"

	"github.com/inkbook/platform/services/scheduling-service/internal/model"
)

// AppointmentFilter selects agenda events. Zero From/To leave that side of the
// range open; a range matches events overlapping [From, To).
type AppointmentFilter struct {
	AgendaID   string
	IDs        []string
	From       time.Time
	To         time.Time
	Statuses   []model.AppointmentStatus
	NotDeleted bool
}

// Matches applies the filter to a single appointment. Implementations that
// cannot push the filter down to their backend use it directly.
func (f AppointmentFilter) Matches(a model.Appointment) bool {
	if f.AgendaID != "" && a.AgendaID != f.AgendaID {
		return false
	}
	if len(f.IDs) > 0 && !containsString(f.IDs, a.ID) {
		return false
	}
	if !f.From.IsZero() && !a.EndDate.After(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.StartDate.Before(f.To) {
		return false
	}
	if len(f.Statuses) > 0 && !model.StatusIn(a.Status, f.Statuses) {
		return false
	}
	if f.NotDeleted && a.Deleted() {
		return false
	}
	return true
}

type QuotationFilter struct {
	ArtistID string
	Type     model.QuotationType
	Statuses []model.QuotationStatus
}

func (f QuotationFilter) Matches(q model.Quotation) bool {
	if f.ArtistID != "" && q.ArtistID != f.ArtistID {
		return false
	}
	if f.Type != "" && q.Type != f.Type {
		return false
	}
	if len(f.Statuses) > 0 && !model.QuotationStatusIn(q.Status, f.Statuses) {
		return false
	}
	return true
}

type Agendas interface {
	// FindAgenda returns false when the artist has no agenda.
	FindAgenda(ctx context.Context, artistID string) (model.Agenda, bool, error)
}

type Appointments interface {
	FindAppointments(ctx context.Context, filter AppointmentFilter) ([]model.Appointment, error)
}

type Blocks interface {
	FindUnavailableBlocks(ctx context.Context, agendaID string, from, to time.Time) ([]model.UnavailableTimeBlock, error)
	FindOverlapping(ctx context.Context, agendaID string, start, end time.Time) ([]model.UnavailableTimeBlock, error)
}

type Quotations interface {
	FindQuotations(ctx context.Context, filter QuotationFilter) ([]model.Quotation, error)
	// FindOpenQuotationsForArtist returns open quotations carrying an offer from
	// artistID whose proposed interval overlaps [from, to). An offer without a
	// duration counts as model.DefaultOfferMinutes long.
	FindOpenQuotationsForArtist(ctx context.Context, artistID string, from, to time.Time) ([]model.Quotation, error)
}

type Customers interface {
	FindCustomers(ctx context.Context, ids []string) ([]model.Customer, error)
}

// Source is everything the engine reads.
type Source interface {
	Agendas
	Appointments
	Blocks
	Quotations
	Customers
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
