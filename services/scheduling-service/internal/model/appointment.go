package model

import "time"

type AppointmentStatus string

const (
	StatusCreated             AppointmentStatus = "CREATED"
	StatusPendingConfirmation AppointmentStatus = "PENDING_CONFIRMATION"
	StatusConfirmed           AppointmentStatus = "CONFIRMED"
	StatusRescheduled         AppointmentStatus = "RESCHEDULED"
	StatusInProgress          AppointmentStatus = "IN_PROGRESS"
	StatusPaymentPending      AppointmentStatus = "PAYMENT_PENDING"
	StatusWaitingForPhotos    AppointmentStatus = "WAITING_FOR_PHOTOS"
	StatusWaitingForReview    AppointmentStatus = "WAITING_FOR_REVIEW"
	StatusCompleted           AppointmentStatus = "COMPLETED"
	StatusCanceled            AppointmentStatus = "CANCELED"

	// StatusAftercarePeriod is referenced by the messaging rule only. No booking
	// flow currently moves an appointment into it.
	StatusAftercarePeriod AppointmentStatus = "AFTERCARE_PERIOD"
)

var allStatuses = []AppointmentStatus{
	StatusCreated,
	StatusPendingConfirmation,
	StatusConfirmed,
	StatusRescheduled,
	StatusInProgress,
	StatusPaymentPending,
	StatusWaitingForPhotos,
	StatusWaitingForReview,
	StatusCompleted,
	StatusCanceled,
	StatusAftercarePeriod,
}

// AllStatuses returns every known appointment status, in lifecycle order.
func AllStatuses() []AppointmentStatus {
	out := make([]AppointmentStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s AppointmentStatus) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// BookableBlockingStatuses occupy time for the purpose of new bookings:
// slot generation, density scoring and appointment validation.
var BookableBlockingStatuses = []AppointmentStatus{StatusConfirmed, StatusRescheduled}

// CalendarBlockingStatuses mark an appointment as firmly holding its time in
// the scheduler view. Kept separate from BookableBlockingStatuses.
var CalendarBlockingStatuses = []AppointmentStatus{StatusConfirmed, StatusInProgress, StatusPaymentPending}

// ActiveStatuses is the allow-list of appointments shown on the scheduler view.
var ActiveStatuses = []AppointmentStatus{
	StatusCreated,
	StatusPendingConfirmation,
	StatusConfirmed,
	StatusRescheduled,
	StatusInProgress,
	StatusPaymentPending,
	StatusWaitingForPhotos,
	StatusWaitingForReview,
	StatusAftercarePeriod,
}

func StatusIn(s AppointmentStatus, set []AppointmentStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Appointment is an agenda event. ArtistID is the owner of the agenda the
// event belongs to.
type Appointment struct {
	ID          string            `json:"id"`
	AgendaID    string            `json:"agenda_id"`
	ArtistID    string            `json:"artist_id"`
	CustomerID  string            `json:"customer_id"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
	Status      AppointmentStatus `json:"status"`
	QuotationID string            `json:"quotation_id,omitempty"`
	ReviewID    string            `json:"review_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	DeletedAt   *time.Time        `json:"deleted_at,omitempty"`
}

func (a Appointment) Deleted() bool {
	return a.DeletedAt != nil
}
