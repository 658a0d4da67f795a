// Package permissions decides which actions an actor may take on an
// appointment. Rules are data: one row per action, evaluated independently.
package permissions

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/inkbook/platform/services/scheduling-service/internal/model"
)

type Action string

const (
	ActionEdit            Action = "edit"
	ActionCancel          Action = "cancel"
	ActionReschedule      Action = "reschedule"
	ActionSendMessage     Action = "sendMessage"
	ActionAddWorkEvidence Action = "addWorkEvidence"
	ActionLeaveReview     Action = "leaveReview"
	ActionConfirmEvent    Action = "confirmEvent"
	ActionRejectEvent     Action = "rejectEvent"
	ActionAppeal          Action = "appeal"
)

// Actor is the caller asking about an appointment.
type Actor struct {
	UserID string     `json:"user_id"`
	Role   model.Role `json:"role"`
}

// Actions is the evaluated permission set. Reasons holds an entry for every
// denied action and for allowed actions whose caller must still check identity.
type Actions struct {
	CanEdit            bool              `json:"can_edit"`
	CanCancel          bool              `json:"can_cancel"`
	CanReschedule      bool              `json:"can_reschedule"`
	CanSendMessage     bool              `json:"can_send_message"`
	CanAddWorkEvidence bool              `json:"can_add_work_evidence"`
	CanLeaveReview     bool              `json:"can_leave_review"`
	CanConfirmEvent    bool              `json:"can_confirm_event"`
	CanRejectEvent     bool              `json:"can_reject_event"`
	CanAppeal          bool              `json:"can_appeal"`
	Reasons            map[Action]string `json:"reasons,omitempty"`
}

// Allowed reports the flag for action; unknown actions are never allowed.
func (a Actions) Allowed(action Action) bool {
	if p := a.flag(action); p != nil {
		return *p
	}
	return false
}

func (a *Actions) flag(action Action) *bool {
	switch action {
	case ActionEdit:
		return &a.CanEdit
	case ActionCancel:
		return &a.CanCancel
	case ActionReschedule:
		return &a.CanReschedule
	case ActionSendMessage:
		return &a.CanSendMessage
	case ActionAddWorkEvidence:
		return &a.CanAddWorkEvidence
	case ActionLeaveReview:
		return &a.CanLeaveReview
	case ActionConfirmEvent:
		return &a.CanConfirmEvent
	case ActionRejectEvent:
		return &a.CanRejectEvent
	case ActionAppeal:
		return &a.CanAppeal
	}
	return nil
}

type party int

const (
	anyone party = iota
	artistOwner
	customerOwner
)

// grant lets one party through once at least minHours remain before the start.
// A zero minHours has no timing restriction.
type grant struct {
	who      party
	minHours float64
}

type rule struct {
	action Action
	verb   string

	// statuses allow-lists; when empty, every status outside excluded passes.
	statuses []model.AppointmentStatus
	excluded []model.AppointmentStatus

	grants []grant

	requireNoReview bool
	// identityLeftToCaller marks rules that do not restrict the actor. A note
	// is attached when the actor is neither owner.
	identityLeftToCaller bool
	alwaysDenied         string
}

var rules = []rule{
	{
		action:   ActionEdit,
		verb:     "edit",
		statuses: []model.AppointmentStatus{model.StatusConfirmed, model.StatusRescheduled},
		grants:   []grant{{who: artistOwner}},
	},
	{
		action:   ActionCancel,
		verb:     "cancel",
		excluded: []model.AppointmentStatus{model.StatusCompleted, model.StatusCanceled},
		grants:   []grant{{who: artistOwner}, {who: customerOwner, minHours: 24}},
	},
	{
		action:   ActionReschedule,
		verb:     "reschedule",
		statuses: []model.AppointmentStatus{model.StatusConfirmed, model.StatusRescheduled},
		grants:   []grant{{who: artistOwner}, {who: customerOwner, minHours: 48}},
	},
	{
		action: ActionSendMessage,
		verb:   "send messages on",
		statuses: []model.AppointmentStatus{
			model.StatusConfirmed,
			model.StatusInProgress,
			model.StatusWaitingForPhotos,
			model.StatusPendingConfirmation,
			model.StatusRescheduled,
			model.StatusAftercarePeriod,
		},
		grants: []grant{{who: anyone}},
	},
	{
		action:   ActionAddWorkEvidence,
		verb:     "add work evidence to",
		statuses: []model.AppointmentStatus{model.StatusWaitingForPhotos, model.StatusCompleted},
		grants:   []grant{{who: artistOwner}},
	},
	{
		action:          ActionLeaveReview,
		verb:            "review",
		statuses:        []model.AppointmentStatus{model.StatusWaitingForReview, model.StatusCompleted},
		grants:          []grant{{who: customerOwner}},
		requireNoReview: true,
	},
	{
		action:               ActionConfirmEvent,
		verb:                 "confirm",
		statuses:             []model.AppointmentStatus{model.StatusPendingConfirmation, model.StatusCreated},
		grants:               []grant{{who: anyone}},
		identityLeftToCaller: true,
	},
	{
		action:               ActionRejectEvent,
		verb:                 "reject",
		statuses:             []model.AppointmentStatus{model.StatusPendingConfirmation, model.StatusCreated},
		grants:               []grant{{who: anyone}},
		identityLeftToCaller: true,
	},
	{
		action:       ActionAppeal,
		verb:         "appeal",
		alwaysDenied: "Appeals are handled through the quotation dispute process",
	},
}

// subject holds the facts every rule is evaluated against.
type subject struct {
	status          model.AppointmentStatus
	isArtist        bool
	isCustomer      bool
	hoursUntilStart float64
	hasReview       bool
}

func newSubject(actor Actor, appt model.Appointment, now time.Time) subject {
	s := subject{
		status:          appt.Status,
		isArtist:        actor.Role == model.RoleArtist && actor.UserID != "" && actor.UserID == appt.ArtistID,
		isCustomer:      actor.Role == model.RoleCustomer && actor.UserID != "" && actor.UserID == appt.CustomerID,
		hoursUntilStart: math.Inf(1),
		hasReview:       appt.ReviewID != "",
	}
	if !now.IsZero() && !appt.StartDate.IsZero() {
		s.hoursUntilStart = appt.StartDate.Sub(now).Hours()
	}
	return s
}

// Evaluate applies every rule to appt for actor at time now.
func Evaluate(actor Actor, appt model.Appointment, now time.Time) Actions {
	subj := newSubject(actor, appt, now)
	out := Actions{Reasons: map[Action]string{}}
	for _, r := range rules {
		allowed, reason := r.evaluate(subj)
		*out.flag(r.action) = allowed
		if reason != "" {
			out.Reasons[r.action] = reason
		}
	}
	return out
}

func (r rule) evaluate(s subject) (bool, string) {
	if r.alwaysDenied != "" {
		return false, r.alwaysDenied
	}
	if len(r.statuses) > 0 && !model.StatusIn(s.status, r.statuses) {
		return false, fmt.Sprintf("Cannot %s an appointment with status %s", r.verb, s.status)
	}
	if model.StatusIn(s.status, r.excluded) {
		return false, fmt.Sprintf("Cannot %s an appointment with status %s", r.verb, s.status)
	}
	if r.requireNoReview && s.hasReview {
		return false, "A review has already been left for this appointment"
	}

	var tooLate *grant
	for i, g := range r.grants {
		if !s.is(g.who) {
			continue
		}
		if g.minHours <= 0 || s.hoursUntilStart >= g.minHours {
			if r.identityLeftToCaller && !s.isArtist && !s.isCustomer {
				return true, fmt.Sprintf("Status allows this; the caller must check the actor may %s it", r.verb)
			}
			return true, ""
		}
		tooLate = &r.grants[i]
	}
	if tooLate != nil {
		return false, fmt.Sprintf("The customer can only %s with at least %d hours notice", r.verb, int(tooLate.minHours))
	}
	return false, fmt.Sprintf("Only %s can %s this appointment", r.parties(), r.verb)
}

func (s subject) is(p party) bool {
	switch p {
	case artistOwner:
		return s.isArtist
	case customerOwner:
		return s.isCustomer
	}
	return true
}

func (r rule) parties() string {
	var names []string
	for _, g := range r.grants {
		switch g.who {
		case artistOwner:
			names = append(names, "the artist")
		case customerOwner:
			names = append(names, "the customer")
		}
	}
	if len(names) == 0 {
		return "a participant"
	}
	return strings.Join(names, " or ")
}
