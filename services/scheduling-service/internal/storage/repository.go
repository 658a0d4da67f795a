// Package storage reads the booking platform's tables through pgx. The
// scheduling service never writes; every query here is a plain SELECT.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/inkbook/platform/libs/db"
	"github.com/inkbook/platform/services/scheduling-service/internal/model"
	"github.com/inkbook/platform/services/scheduling-service/internal/provider"
)

type Repository struct {
	pool *db.Pool
}

var _ provider.Source = (*Repository)(nil)

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) FindAgenda(ctx context.Context, artistID string) (model.Agenda, bool, error) {
	var (
		a          model.Agenda
		start, end *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, artist_id::text, working_hours_start, working_hours_end, COALESCE(working_days, '{}')
		FROM agendas
		WHERE artist_id = $1
		LIMIT 1
	`, artistID).Scan(&a.ID, &a.ArtistID, &start, &end, &a.WorkingDays)
	if IsNotFound(err) {
		return model.Agenda{}, false, nil
	}
	if err != nil {
		return model.Agenda{}, false, err
	}
	a.WorkingHoursStart = deref(start)
	a.WorkingHoursEnd = deref(end)
	return a, true, nil
}

const appointmentColumns = `
	e.id::text, e.agenda_id::text, a.artist_id::text, COALESCE(e.customer_id::text, ''),
	e.start_date, e.end_date, e.status,
	COALESCE(e.quotation_id::text, ''), COALESCE(e.review_id::text, ''),
	e.created_at, e.deleted_at`

func (r *Repository) FindAppointments(ctx context.Context, filter provider.AppointmentFilter) ([]model.Appointment, error) {
	query, args := appointmentQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var (
			appt   model.Appointment
			status string
		)
		if err := rows.Scan(
			&appt.ID,
			&appt.AgendaID,
			&appt.ArtistID,
			&appt.CustomerID,
			&appt.StartDate,
			&appt.EndDate,
			&status,
			&appt.QuotationID,
			&appt.ReviewID,
			&appt.CreatedAt,
			&appt.DeletedAt,
		); err != nil {
			return nil, err
		}
		appt.Status = model.AppointmentStatus(status)
		appt.StartDate = appt.StartDate.UTC()
		appt.EndDate = appt.EndDate.UTC()
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// appointmentQuery pushes the filter down to SQL with the same half-open
// range semantics as AppointmentFilter.Matches.
func appointmentQuery(filter provider.AppointmentFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.AgendaID != "" {
		where = append(where, "e.agenda_id = "+arg(filter.AgendaID))
	}
	if len(filter.IDs) > 0 {
		where = append(where, "e.id::text = ANY("+arg(filter.IDs)+")")
	}
	if !filter.From.IsZero() {
		where = append(where, "e.end_date > "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "e.start_date < "+arg(filter.To))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		where = append(where, "e.status = ANY("+arg(statuses)+")")
	}
	if filter.NotDeleted {
		where = append(where, "e.deleted_at IS NULL")
	}

	query := `SELECT ` + appointmentColumns + `
		FROM agenda_events e
		JOIN agendas a ON a.id = e.agenda_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY e.start_date ASC"

	return query, args
}

func (r *Repository) FindUnavailableBlocks(ctx context.Context, agendaID string, from, to time.Time) ([]model.UnavailableTimeBlock, error) {
	return r.blocks(ctx, agendaID, from, to)
}

// FindOverlapping shares the half-open query with FindUnavailableBlocks; the
// two differ only in how callers name the interval.
func (r *Repository) FindOverlapping(ctx context.Context, agendaID string, start, end time.Time) ([]model.UnavailableTimeBlock, error) {
	return r.blocks(ctx, agendaID, start, end)
}

func (r *Repository) blocks(ctx context.Context, agendaID string, from, to time.Time) ([]model.UnavailableTimeBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, agenda_id::text, start_date, end_date, COALESCE(reason, '')
		FROM agenda_unavailable_times
		WHERE agenda_id = $1
			AND start_date < $3
			AND end_date > $2
		ORDER BY start_date ASC
	`, agendaID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []model.UnavailableTimeBlock
	for rows.Next() {
		var b model.UnavailableTimeBlock
		if err := rows.Scan(&b.ID, &b.AgendaID, &b.StartDate, &b.EndDate, &b.Reason); err != nil {
			return nil, err
		}
		b.StartDate = b.StartDate.UTC()
		b.EndDate = b.EndDate.UTC()
		blocks = append(blocks, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return blocks, nil
}

const quotationColumns = `
	q.id::text, COALESCE(q.artist_id::text, ''), q.customer_id::text, q.type, q.status,
	COALESCE(q.description, ''), q.appointment_date, COALESCE(q.appointment_duration, 0), q.created_at`

func (r *Repository) FindQuotations(ctx context.Context, filter provider.QuotationFilter) ([]model.Quotation, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses = append(statuses, string(s))
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+quotationColumns+`
		FROM quotations q
		WHERE ($1::text = '' OR q.artist_id::text = $1)
			AND ($2::text = '' OR q.type = $2)
			AND (cardinality($3::text[]) = 0 OR q.status = ANY($3))
		ORDER BY q.created_at ASC
	`, filter.ArtistID, string(filter.Type), statuses)
	if err != nil {
		return nil, err
	}
	quotes, err := scanQuotations(rows)
	if err != nil {
		return nil, err
	}
	return r.attachOffers(ctx, quotes)
}

func (r *Repository) FindOpenQuotationsForArtist(ctx context.Context, artistID string, from, to time.Time) ([]model.Quotation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+quotationColumns+`
		FROM quotations q
		WHERE q.type = 'OPEN'
			AND EXISTS (
				SELECT 1 FROM quotation_offers o
				WHERE o.quotation_id = q.id
					AND o.artist_id = $1
					AND o.estimated_date < $3
					AND o.estimated_date + make_interval(mins => COALESCE(NULLIF(o.estimated_duration, 0), $4)) > $2
			)
		ORDER BY q.created_at ASC
	`, artistID, from, to, model.DefaultOfferMinutes)
	if err != nil {
		return nil, err
	}
	quotes, err := scanQuotations(rows)
	if err != nil {
		return nil, err
	}
	return r.attachOffers(ctx, quotes)
}

func scanQuotations(rows pgx.Rows) ([]model.Quotation, error) {
	defer rows.Close()

	var quotes []model.Quotation
	for rows.Next() {
		var (
			q        model.Quotation
			typ, st  string
			proposed *time.Time
		)
		if err := rows.Scan(
			&q.ID,
			&q.ArtistID,
			&q.CustomerID,
			&typ,
			&st,
			&q.Description,
			&proposed,
			&q.AppointmentDuration,
			&q.CreatedAt,
		); err != nil {
			return nil, err
		}
		q.Type = model.QuotationType(typ)
		q.Status = model.QuotationStatus(st)
		q.AppointmentDate = utcPtr(proposed)
		quotes = append(quotes, q)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return quotes, nil
}

// attachOffers loads the offers of every quotation in one round trip.
func (r *Repository) attachOffers(ctx context.Context, quotes []model.Quotation) ([]model.Quotation, error) {
	if len(quotes) == 0 {
		return quotes, nil
	}
	ids := make([]string, 0, len(quotes))
	index := make(map[string]int, len(quotes))
	for i, q := range quotes {
		ids = append(ids, q.ID)
		index[q.ID] = i
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id::text, quotation_id::text, artist_id::text, estimated_date, COALESCE(estimated_duration, 0), created_at
		FROM quotation_offers
		WHERE quotation_id::text = ANY($1)
		ORDER BY created_at ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o           model.Offer
			quotationID string
			date        *time.Time
		)
		if err := rows.Scan(&o.ID, &quotationID, &o.ArtistID, &date, &o.AppointmentDuration, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.AppointmentDate = utcPtr(date)
		if i, ok := index[quotationID]; ok {
			quotes[i].Offers = append(quotes[i].Offers, o)
		}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return quotes, nil
}

func (r *Repository) FindCustomers(ctx context.Context, ids []string) ([]model.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, COALESCE(user_id::text, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
			COALESCE(contact_email, ''), COALESCE(contact_phone_number, '')
		FROM customers
		WHERE id::text = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.UserID, &c.FirstName, &c.LastName, &c.Email, &c.Phone); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return customers, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
