package permissions

import (
	"maps"
	"sync"
	"time"

	"github.com/inkbook/platform/services/scheduling-service/internal/model"
)

type loaderKey struct {
	userID        string
	role          model.Role
	appointmentID string
}

// Loader memoizes Evaluate for the lifetime of one request. Create one per
// request and drop it afterwards; it is safe for concurrent use.
type Loader struct {
	now func() time.Time

	mu   sync.Mutex
	memo map[loaderKey]Actions
	hits int
}

func NewLoader(now func() time.Time) *Loader {
	if now == nil {
		now = time.Now
	}
	return &Loader{now: now, memo: map[loaderKey]Actions{}}
}

// Actions returns the permissions of actor on appt, evaluating at most once per
// (user, role, appointment) within this loader.
func (l *Loader) Actions(actor Actor, appt model.Appointment) Actions {
	key := loaderKey{userID: actor.UserID, role: actor.Role, appointmentID: appt.ID}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.memo[key]; ok {
		l.hits++
		return cloneActions(cached)
	}
	actions := Evaluate(actor, appt, l.now())
	l.memo[key] = actions
	return cloneActions(actions)
}

// Hits is the number of lookups served from the memo.
func (l *Loader) Hits() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hits
}

func cloneActions(a Actions) Actions {
	a.Reasons = maps.Clone(a.Reasons)
	return a
}
