package model

import "time"

type QuotationType string

const (
	QuotationDirect QuotationType = "DIRECT"
	QuotationOpen   QuotationType = "OPEN"
)

type QuotationStatus string

const (
	QuotationPending    QuotationStatus = "PENDING"
	QuotationQuoted     QuotationStatus = "QUOTED"
	QuotationAppealed   QuotationStatus = "APPEALED"
	QuotationAccepted   QuotationStatus = "ACCEPTED"
	QuotationRejected   QuotationStatus = "REJECTED"
	QuotationCanceled   QuotationStatus = "CANCELED"
	QuotationOpenStatus QuotationStatus = "OPEN"
)

// ArtistActionableStatuses are the direct-quotation states that wait on the artist.
var ArtistActionableStatuses = []QuotationStatus{QuotationQuoted, QuotationAppealed}

// DirectViewStatuses are the direct-quotation states shown on the scheduler view.
var DirectViewStatuses = []QuotationStatus{QuotationPending, QuotationQuoted, QuotationAppealed}

func QuotationStatusIn(s QuotationStatus, set []QuotationStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Offer is an artist's answer to an open quotation.
type Offer struct {
	ID                  string     `json:"id"`
	ArtistID            string     `json:"artist_id"`
	AppointmentDate     *time.Time `json:"appointment_date,omitempty"`
	AppointmentDuration int        `json:"appointment_duration,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// DefaultOfferMinutes stands in for the length of an offer that names no duration.
const DefaultOfferMinutes = 60

// Span returns the interval the offer proposes. ok is false when the offer has no date.
func (o Offer) Span() (start, end time.Time, ok bool) {
	if o.AppointmentDate == nil {
		return time.Time{}, time.Time{}, false
	}
	minutes := o.AppointmentDuration
	if minutes <= 0 {
		minutes = DefaultOfferMinutes
	}
	start = o.AppointmentDate.UTC()
	return start, start.Add(time.Duration(minutes) * time.Minute), true
}

type Quotation struct {
	ID                  string          `json:"id"`
	ArtistID            string          `json:"artist_id"`
	CustomerID          string          `json:"customer_id"`
	Type                QuotationType   `json:"type"`
	Status              QuotationStatus `json:"status"`
	Description         string          `json:"description,omitempty"`
	AppointmentDate     *time.Time      `json:"appointment_date,omitempty"`
	AppointmentDuration int             `json:"appointment_duration,omitempty"`
	Offers              []Offer         `json:"offers,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// ProposedTime returns the time the quotation proposes for artistID: the
// quotation's own date for direct quotations, the artist's offer for open ones.
// Duration is in minutes and may be zero when unknown.
func (q Quotation) ProposedTime(artistID string) (time.Time, int, bool) {
	if q.Type == QuotationOpen {
		for _, o := range q.Offers {
			if o.ArtistID == artistID && o.AppointmentDate != nil {
				return o.AppointmentDate.UTC(), o.AppointmentDuration, true
			}
		}
		return time.Time{}, 0, false
	}
	if q.AppointmentDate == nil {
		return time.Time{}, 0, false
	}
	return q.AppointmentDate.UTC(), q.AppointmentDuration, true
}
