package model

import "time"

// Agenda is an artist's scheduling configuration.
//
// WorkingHoursStart/End are "HH:MM" in UTC and may be empty. WorkingDays holds
// weekday codes "1" (Monday) through "7" (Sunday).
type Agenda struct {
	ID                string   `json:"id"`
	ArtistID          string   `json:"artist_id"`
	WorkingHoursStart string   `json:"working_hours_start,omitempty"`
	WorkingHoursEnd   string   `json:"working_hours_end,omitempty"`
	WorkingDays       []string `json:"working_days"`
}

func (a Agenda) WorksOn(code string) bool {
	for _, d := range a.WorkingDays {
		if d == code {
			return true
		}
	}
	return false
}

// UnavailableTimeBlock is artist-declared blackout time.
type UnavailableTimeBlock struct {
	ID        string    `json:"id"`
	AgendaID  string    `json:"agenda_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason,omitempty"`
}

type Customer struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type Role string

const (
	RoleArtist   Role = "ARTIST"
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)
