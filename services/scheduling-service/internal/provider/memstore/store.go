// Package memstore is an in-memory provider.Source for tests and local runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/inkbook/platform/services/scheduling-service/internal/model"
	"github.com/inkbook/platform/services/scheduling-service/internal/provider"
	"github.com/inkbook/platform/services/scheduling-service/internal/timewindow"
)

type Store struct {
	mu           sync.RWMutex
	agendas      map[string]model.Agenda
	appointments []model.Appointment
	blocks       []model.UnavailableTimeBlock
	quotations   []model.Quotation
	customers    map[string]model.Customer

	calls map[string]int
}

var _ provider.Source = (*Store)(nil)

func New() *Store {
	return &Store{
		agendas:   map[string]model.Agenda{},
		customers: map[string]model.Customer{},
		calls:     map[string]int{},
	}
}

func (s *Store) PutAgenda(a model.Agenda) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agendas[a.ArtistID] = a
}

// AddAppointment stores a; ArtistID is filled from the agenda when empty.
func (s *Store) AddAppointment(a model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ArtistID == "" {
		for _, ag := range s.agendas {
			if ag.ID == a.AgendaID {
				a.ArtistID = ag.ArtistID
				break
			}
		}
	}
	s.appointments = append(s.appointments, a)
}

func (s *Store) AddBlock(b model.UnavailableTimeBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, b)
}

func (s *Store) AddQuotation(q model.Quotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotations = append(s.quotations, q)
}

func (s *Store) PutCustomer(c model.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

// Calls reports how many times method was invoked.
func (s *Store) Calls(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[method]
}

func (s *Store) record(method string) {
	s.calls[method]++
}

func (s *Store) FindAgenda(_ context.Context, artistID string) (model.Agenda, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindAgenda")
	a, ok := s.agendas[artistID]
	return a, ok, nil
}

func (s *Store) FindAppointments(_ context.Context, filter provider.AppointmentFilter) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindAppointments")
	var out []model.Appointment
	for _, a := range s.appointments {
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (s *Store) FindUnavailableBlocks(_ context.Context, agendaID string, from, to time.Time) ([]model.UnavailableTimeBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindUnavailableBlocks")
	return s.overlappingBlocks(agendaID, from, to), nil
}

func (s *Store) FindOverlapping(_ context.Context, agendaID string, start, end time.Time) ([]model.UnavailableTimeBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindOverlapping")
	return s.overlappingBlocks(agendaID, start, end), nil
}

func (s *Store) overlappingBlocks(agendaID string, from, to time.Time) []model.UnavailableTimeBlock {
	var out []model.UnavailableTimeBlock
	for _, b := range s.blocks {
		if b.AgendaID != agendaID {
			continue
		}
		if timewindow.Overlaps(b.StartDate, b.EndDate, from, to) {
			out = append(out, b)
		}
	}
	return out
}

func (s *Store) FindQuotations(_ context.Context, filter provider.QuotationFilter) ([]model.Quotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindQuotations")
	var out []model.Quotation
	for _, q := range s.quotations {
		if filter.Matches(q) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *Store) FindOpenQuotationsForArtist(_ context.Context, artistID string, from, to time.Time) ([]model.Quotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindOpenQuotationsForArtist")
	var out []model.Quotation
	for _, q := range s.quotations {
		if q.Type != model.QuotationOpen {
			continue
		}
		for _, o := range q.Offers {
			if o.ArtistID != artistID {
				continue
			}
			if start, end, ok := o.Span(); ok && timewindow.Overlaps(start, end, from, to) {
				out = append(out, q)
				break
			}
		}
	}
	return out, nil
}

func (s *Store) FindCustomers(_ context.Context, ids []string) ([]model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindCustomers")
	var out []model.Customer
	for _, id := range ids {
		if c, ok := s.customers[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}
