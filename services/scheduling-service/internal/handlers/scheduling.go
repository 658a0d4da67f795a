package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkbook/platform/services/scheduling-service/internal/apperr"
	"github.com/inkbook/platform/services/scheduling-service/internal/availability"
	"github.com/inkbook/platform/services/scheduling-service/internal/metrics"
	"github.com/inkbook/platform/services/scheduling-service/internal/model"
	"github.com/inkbook/platform/services/scheduling-service/internal/permissions"
	"github.com/inkbook/platform/services/scheduling-service/internal/provider"
	"github.com/inkbook/platform/services/scheduling-service/internal/schedulerview"
)

const (
	defaultDurationMinutes = 60
	maxSuggestionCount     = 50
	maxBodyBytes           = 1 << 16

	headerUserID = "X-User-Id"
	headerRole   = "X-Role"
)

type (
	AvailabilityFinder interface {
		FindAvailableSlots(ctx context.Context, artistID string, durationMinutes int, from, to time.Time) (model.AvailabilityCalendar, error)
	}
	Suggester interface {
		SuggestOptimalTimes(ctx context.Context, artistID string, durationMinutes, count int) ([]model.TimeSlot, error)
	}
	TimeValidator interface {
		ValidateAppointmentTime(ctx context.Context, artistID string, start time.Time, durationMinutes int) (availability.Verdict, error)
	}
	SchedulerBuilder interface {
		Build(ctx context.Context, req schedulerview.Request) (schedulerview.View, error)
	}
)

// SchedulingHandler serves the read-only scheduling API. Identity headers are
// set by the gateway and trusted as given.
type SchedulingHandler struct {
	finder       AvailabilityFinder
	suggester    Suggester
	validator    TimeValidator
	scheduler    SchedulerBuilder
	appointments provider.Appointments
	now          func() time.Time
	logger       *slog.Logger
}

type Deps struct {
	Finder       AvailabilityFinder
	Suggester    Suggester
	Validator    TimeValidator
	Scheduler    SchedulerBuilder
	Appointments provider.Appointments
	Now          func() time.Time
	Logger       *slog.Logger
}

func NewSchedulingHandler(d Deps) *SchedulingHandler {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &SchedulingHandler{
		finder:       d.Finder,
		suggester:    d.Suggester,
		validator:    d.Validator,
		scheduler:    d.Scheduler,
		appointments: d.Appointments,
		now:          d.Now,
		logger:       d.Logger,
	}
}

func (h *SchedulingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/availability", metrics.Instrument("availability", h.Availability))
	mux.HandleFunc("/api/v1/suggestions", metrics.Instrument("suggestions", h.Suggestions))
	mux.HandleFunc("/api/v1/appointments/validate", metrics.Instrument("validate", h.Validate))
	mux.HandleFunc("/api/v1/appointments/actions", metrics.Instrument("actions", h.Actions))
	mux.HandleFunc("/api/v1/scheduler", metrics.Instrument("scheduler", h.Scheduler))
}

type availabilityResponse struct {
	ArtistID        string                     `json:"artist_id"`
	DurationMinutes int                        `json:"duration_minutes"`
	Days            model.AvailabilityCalendar `json:"days"`
}

func (h *SchedulingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	artistID, ok := requireUUID(w, q.Get("artist_id"), "artist_id")
	if !ok {
		return
	}
	duration, ok := intParam(w, q.Get("duration_minutes"), "duration_minutes", defaultDurationMinutes)
	if !ok {
		return
	}
	from, ok := timeParam(w, q.Get("from"), "from")
	if !ok {
		return
	}
	to, ok := timeParam(w, q.Get("to"), "to")
	if !ok {
		return
	}

	cal, err := h.finder.FindAvailableSlots(r.Context(), artistID, duration, from, to)
	if err != nil {
		h.writeError(w, "availability lookup failed", err)
		return
	}
	if cal == nil {
		cal = model.AvailabilityCalendar{}
	}
	metrics.SlotsReturned.WithLabelValues("availability").Observe(float64(len(cal.Slots())))
	writeJSON(w, http.StatusOK, availabilityResponse{ArtistID: artistID, DurationMinutes: duration, Days: cal})
}

type suggestionsResponse struct {
	ArtistID    string           `json:"artist_id"`
	Suggestions []model.TimeSlot `json:"suggestions"`
}

func (h *SchedulingHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	artistID, ok := requireUUID(w, q.Get("artist_id"), "artist_id")
	if !ok {
		return
	}
	duration, ok := intParam(w, q.Get("duration_minutes"), "duration_minutes", defaultDurationMinutes)
	if !ok {
		return
	}
	count, ok := intParam(w, q.Get("count"), "count", 0)
	if !ok {
		return
	}
	if count < 0 || count > maxSuggestionCount {
		http.Error(w, "count must be between 0 and "+strconv.Itoa(maxSuggestionCount), http.StatusBadRequest)
		return
	}

	slots, err := h.suggester.SuggestOptimalTimes(r.Context(), artistID, duration, count)
	if err != nil {
		h.writeError(w, "suggestion failed", err)
		return
	}
	if slots == nil {
		slots = []model.TimeSlot{}
	}
	metrics.SlotsReturned.WithLabelValues("suggestions").Observe(float64(len(slots)))
	writeJSON(w, http.StatusOK, suggestionsResponse{ArtistID: artistID, Suggestions: slots})
}

type validateRequest struct {
	ArtistID        string `json:"artist_id"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (h *SchedulingHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req validateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	artistID, ok := requireUUID(w, req.ArtistID, "artist_id")
	if !ok {
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	verdict, err := h.validator.ValidateAppointmentTime(r.Context(), artistID, start.UTC(), req.DurationMinutes)
	if err != nil {
		h.writeError(w, "validation failed", err)
		return
	}
	metrics.ValidationVerdicts.WithLabelValues(strconv.FormatBool(verdict.Valid)).Inc()
	writeJSON(w, http.StatusOK, verdict)
}

type actionsResponse struct {
	AppointmentID string              `json:"appointment_id"`
	Actions       permissions.Actions `json:"actions"`
}

func (h *SchedulingHandler) Actions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	apptID, ok := requireUUID(w, r.URL.Query().Get("appointment_id"), "appointment_id")
	if !ok {
		return
	}
	actor, err := actorFromHeaders(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if actor.UserID == "" {
		http.Error(w, headerUserID+" and "+headerRole+" are required", http.StatusBadRequest)
		return
	}

	found, err := h.appointments.FindAppointments(r.Context(), provider.AppointmentFilter{IDs: []string{apptID}, NotDeleted: true})
	if err != nil {
		h.writeError(w, "appointment lookup failed", err)
		return
	}
	if len(found) == 0 {
		h.writeError(w, "appointment lookup failed", apperr.NotFound("appointment", apptID))
		return
	}
	writeJSON(w, http.StatusOK, actionsResponse{
		AppointmentID: apptID,
		Actions:       permissions.Evaluate(actor, found[0], h.now()),
	})
}

func (h *SchedulingHandler) Scheduler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	artistID, ok := requireUUID(w, q.Get("artist_id"), "artist_id")
	if !ok {
		return
	}
	from, ok := timeParam(w, q.Get("from"), "from")
	if !ok {
		return
	}
	to, ok := timeParam(w, q.Get("to"), "to")
	if !ok {
		return
	}
	duration, ok := intParam(w, q.Get("duration_minutes"), "duration_minutes", defaultDurationMinutes)
	if !ok {
		return
	}
	actor, err := actorFromHeaders(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := h.scheduler.Build(r.Context(), schedulerview.Request{
		ArtistID:            artistID,
		Actor:               actor,
		From:                from,
		To:                  to,
		IncludeAvailability: boolParam(q.Get("include_availability")),
		IncludeSuggestions:  boolParam(q.Get("include_suggestions")),
		DurationMinutes:     duration,
	})
	if err != nil {
		h.writeError(w, "scheduler build failed", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *SchedulingHandler) writeError(w http.ResponseWriter, msg string, err error) {
	switch {
	case apperr.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case apperr.IsInvalidInput(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn(msg, "err", err)
		http.Error(w, "request timed out", http.StatusGatewayTimeout)
	default:
		h.logger.Error(msg, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func requireUUID(w http.ResponseWriter, raw, field string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		http.Error(w, field+" is required", http.StatusBadRequest)
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid "+field, http.StatusBadRequest)
		return "", false
	}
	return id.String(), true
}

func intParam(w http.ResponseWriter, raw, field string, fallback int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "invalid "+field, http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// timeParam accepts a calendar date or an RFC 3339 timestamp, both in UTC.
func timeParam(w http.ResponseWriter, raw, field string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		http.Error(w, field+" is required", http.StatusBadRequest)
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, time.UTC); err == nil {
		return t, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		http.Error(w, "invalid "+field, http.StatusBadRequest)
		return time.Time{}, false
	}
	return t.UTC(), true
}

func boolParam(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}

// actorFromHeaders returns the zero Actor when neither header is present.
func actorFromHeaders(r *http.Request) (permissions.Actor, error) {
	rawID := strings.TrimSpace(r.Header.Get(headerUserID))
	rawRole := strings.ToUpper(strings.TrimSpace(r.Header.Get(headerRole)))
	if rawID == "" && rawRole == "" {
		return permissions.Actor{}, nil
	}
	if rawID == "" || rawRole == "" {
		return permissions.Actor{}, errors.New(headerUserID + " and " + headerRole + " must be sent together")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return permissions.Actor{}, errors.New("invalid " + headerUserID)
	}
	role := model.Role(rawRole)
	switch role {
	case model.RoleArtist, model.RoleCustomer, model.RoleAdmin:
	default:
		return permissions.Actor{}, errors.New("invalid " + headerRole)
	}
	return permissions.Actor{UserID: id.String(), Role: role}, nil
}
