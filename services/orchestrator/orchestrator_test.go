package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"clinicvoice/models"
	"clinicvoice/services/calendar"
	"clinicvoice/services/directory"
	"clinicvoice/services/reconcile"
	"clinicvoice/services/scheduling"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCalendar reproduces the conditional-create contract in memory.
type memCalendar struct {
	mu     sync.Mutex
	events map[string]calendar.Event
	busy   map[string][]models.BusyInterval
	nextID int
}

func newMemCalendar() *memCalendar {
	return &memCalendar{events: make(map[string]calendar.Event), busy: make(map[string][]models.BusyInterval)}
}

func (m *memCalendar) FreeBusy(ctx context.Context, ref string, from, to time.Time) ([]models.BusyInterval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.BusyInterval{}, m.busy[ref]...)
	for _, ev := range m.events {
		out = append(out, models.BusyInterval{Start: ev.Start, End: ev.End})
	}
	return out, nil
}

func (m *memCalendar) CreateProvisionalEvent(ctx context.Context, ref string, slot models.Slot, summary, description string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if slot.Start.Before(ev.End) && ev.Start.Before(slot.End) {
			return "", calendar.ErrConflict
		}
	}
	m.nextID++
	id := fmt.Sprintf("evt-%d", m.nextID)
	m.events[id] = calendar.Event{ID: id, Summary: summary, Description: description,
		Start: slot.Start, End: slot.End, Provisional: true, Created: time.Now()}
	return id, nil
}

func (m *memCalendar) ConfirmEvent(ctx context.Context, ref, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return calendar.ErrNotFound
	}
	ev.Provisional = false
	m.events[eventID] = ev
	return nil
}

func (m *memCalendar) DeleteEvent(ctx context.Context, ref, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		return calendar.ErrNotFound
	}
	delete(m.events, eventID)
	return nil
}

func (m *memCalendar) ListEvents(ctx context.Context, ref string, from, to time.Time) ([]calendar.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []calendar.Event
	for _, ev := range m.events {
		if ev.Start.Before(to) && from.Before(ev.End) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memCalendar) ListCalendars(ctx context.Context) ([]calendar.Info, error) {
	return []calendar.Info{{Ref: "cal-derm"}}, nil
}

// staticDirectory serves a fixed roster.
type staticDirectory struct {
	roster []models.Practitioner
}

func (d *staticDirectory) FindBySpecialty(ctx context.Context, specialty string) ([]models.Practitioner, error) {
	var out []models.Practitioner
	for _, p := range d.roster {
		if p.HasSpecialty(specialty) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, directory.ErrNotFound
	}
	return out, nil
}

func (d *staticDirectory) GetByID(ctx context.Context, id string) (*models.Practitioner, error) {
	for i := range d.roster {
		if d.roster[i].ID == id {
			p := d.roster[i]
			return &p, nil
		}
	}
	return nil, directory.ErrNotFound
}

func (d *staticDirectory) All(ctx context.Context) ([]models.Practitioner, error) {
	return append([]models.Practitioner{}, d.roster...), nil
}

func (d *staticDirectory) Refresh(ctx context.Context) error { return nil }

// staticReconciler resolves against a fixed patient list with the production
// matching semantics reduced to exact fields.
type staticReconciler struct {
	patients []models.PatientRecord
	created  int
}

func (r *staticReconciler) FindMatches(ctx context.Context, id models.PatientIdentity) ([]models.PatientRecord, error) {
	var out []models.PatientRecord
	for _, p := range r.patients {
		if strings.EqualFold(p.Identity.FirstName, id.FirstName) &&
			strings.EqualFold(p.Identity.LastName, id.LastName) &&
			p.Identity.DateOfBirth == id.DateOfBirth {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *staticReconciler) Resolve(ctx context.Context, id models.PatientIdentity) (*models.PatientRecord, error) {
	matches, _ := r.FindMatches(ctx, id)
	switch len(matches) {
	case 1:
		rec := matches[0]
		rec.IsNew = false
		return &rec, nil
	case 0:
		r.created++
		return &models.PatientRecord{ID: fmt.Sprintf("new-%d", r.created), Identity: id, IsNew: true}, nil
	default:
		return nil, reconcile.ErrAmbiguous
	}
}

func (r *staticReconciler) Disambiguate(ctx context.Context, id models.PatientIdentity, phone string) (*models.PatientRecord, error) {
	matches, _ := r.FindMatches(ctx, id)
	for _, m := range matches {
		if m.Identity.Phone == phone {
			rec := m
			rec.IsNew = false
			return &rec, nil
		}
	}
	return nil, reconcile.ErrAmbiguous
}

func (r *staticReconciler) UpdatePatient(ctx context.Context, rec *models.PatientRecord) error {
	return nil
}

type testEnv struct {
	svc *DefaultSessionService
	cal *memCalendar
	mgr *scheduling.DefaultReservationManager
	now time.Time
}

// Wednesday morning in Paris; "demain" resolves to Thursday 2026-09-10.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	now := time.Date(2026, 9, 9, 8, 0, 0, 0, loc)

	cal := newMemCalendar()
	mr := miniredis.RunT(t)
	holdClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	mgr := &scheduling.DefaultReservationManager{
		Calendar: cal,
		Availability: &scheduling.DefaultAvailabilityResolver{
			Calendar: cal,
			Hours:    scheduling.ClinicHours{OpenHour: 9, CloseHour: 17, SlotMinutes: 30, Location: loc},
			Retries:  2,
			Backoff:  time.Millisecond,
			Now:      func() time.Time { return now },
		},
		HoldClient: holdClient,
		HoldTTL:    2 * time.Minute,
		Now:        func() time.Time { return now },
	}

	sessRedis := miniredis.RunT(t)
	store := NewRedisSessionStore(redis.NewClient(&redis.Options{Addr: sessRedis.Addr()}), 30*time.Minute)

	dir := &staticDirectory{roster: []models.Practitioner{
		{ID: "dr-martin", Name: "Dr Sophie Martin", Specialties: []string{"dermatologie"}, CalendarRef: "cal-derm", Active: true},
	}}
	rec := &staticReconciler{patients: []models.PatientRecord{
		{ID: "pat-jeanne", Identity: models.PatientIdentity{
			FirstName: "Jeanne", LastName: "Dupont", DateOfBirth: "1990-05-02", Phone: "0612345678",
		}},
	}}

	svc := &DefaultSessionService{
		Directory:    dir,
		Reservations: mgr,
		Reconciler:   rec,
		Sessions:     store,
		Calendar:     cal,
		Location:     loc,
		Now:          func() time.Time { return now },
	}
	return &testEnv{svc: svc, cal: cal, mgr: mgr, now: now}
}

func (e *testEnv) intent(t *testing.T, callID, intent string, entities map[string]string) *models.SpokenResponseDirective {
	t.Helper()
	d, err := e.svc.HandleIntent(context.Background(), callID, models.IntentRequest{Intent: intent, Entities: entities})
	require.NoError(t, err)
	return d
}

func thursdaySlot(e *testEnv, hour, minute int) time.Time {
	return time.Date(2026, 9, 10, hour, minute, 0, 0, e.now.Location())
}

func TestFullBookingConversation(t *testing.T) {
	e := newTestEnv(t)

	// The 10h00 slot is already taken on the calendar.
	e.cal.busy["cal-derm"] = []models.BusyInterval{
		{Start: thursdaySlot(e, 10, 0), End: thursdaySlot(e, 10, 30)},
	}

	sess, d, err := e.svc.StartSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateGreeting, d.State)
	callID := sess.CallID

	d = e.intent(t, callID, models.IntentDescribeNeed, map[string]string{
		models.EntityCategory: "dermatologie",
		models.EntityNeedText: "j'ai un grain de beauté suspect",
	})
	assert.Equal(t, models.StateFindSlot, d.State)
	assert.Contains(t, d.Say, "Dr Sophie Martin")

	d = e.intent(t, callID, models.IntentRequestSlots, map[string]string{models.EntityDate: "demain"})
	assert.Equal(t, models.StateFindSlot, d.State)
	// First free slot is 9h00; 10h00 is busy and never offered.
	assert.Contains(t, d.Say, "9h")

	// Decline 9h00, then 9h30, landing on 11h00 via an explicit time.
	d = e.intent(t, callID, models.IntentDeclineSlot, nil)
	assert.Contains(t, d.Say, "9h30")

	d = e.intent(t, callID, models.IntentAcceptSlot, map[string]string{models.EntityTime: "11h"})
	assert.Equal(t, models.StateReconcilePatient, d.State)
	assert.Contains(t, d.Say, "11h")

	d = e.intent(t, callID, models.IntentProvideIdentity, map[string]string{
		models.EntityFirstName:   "Jeanne",
		models.EntityLastName:    "Dupont",
		models.EntityDateOfBirth: "1990-05-02",
	})
	assert.Equal(t, models.StateFinalize, d.State)
	assert.Contains(t, d.Say, "Jeanne Dupont")
	assert.NotContains(t, d.Say, "nouveau dossier", "known patient must not be re-created")

	d = e.intent(t, callID, models.IntentConfirm, nil)
	assert.Equal(t, models.StateFinalized, d.State)
	assert.True(t, d.EndCall)

	// Exactly one committed event at 11h00.
	events, err := e.cal.ListEvents(context.Background(), "cal-derm", thursdaySlot(e, 0, 0), thursdaySlot(e, 23, 59))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Provisional)
	assert.True(t, events[0].Start.Equal(thursdaySlot(e, 11, 0)))
}

func TestAcceptedSlotTakenByAnotherCallerReoffersNext(t *testing.T) {
	e := newTestEnv(t)

	sess, _, err := e.svc.StartSession(context.Background())
	require.NoError(t, err)
	callID := sess.CallID

	e.intent(t, callID, models.IntentDescribeNeed, map[string]string{models.EntityCategory: "dermatologie"})
	d := e.intent(t, callID, models.IntentRequestSlots, map[string]string{models.EntityDate: "demain"})
	assert.Contains(t, d.Say, "9h")

	// Another caller grabs the offered 9h00 slot between proposal and accept.
	taken := models.Slot{PractitionerID: "dr-martin", Start: thursdaySlot(e, 9, 0), End: thursdaySlot(e, 9, 30)}
	_, err = e.mgr.Hold(context.Background(), "cal-derm", taken, "RDV", "")
	require.NoError(t, err)

	d = e.intent(t, callID, models.IntentAcceptSlot, nil)
	assert.Equal(t, models.StateFindSlot, d.State)
	assert.Contains(t, d.Say, "vient malheureusement d'être pris")
	assert.Contains(t, d.Say, "9h30", "the next free slot must be offered")
	assert.False(t, d.EndCall)
}

func TestNewPatientGetsRecordCreated(t *testing.T) {
	e := newTestEnv(t)

	sess, _, err := e.svc.StartSession(context.Background())
	require.NoError(t, err)
	callID := sess.CallID

	e.intent(t, callID, models.IntentDescribeNeed, map[string]string{models.EntityCategory: "dermatologie"})
	e.intent(t, callID, models.IntentRequestSlots, map[string]string{models.EntityDate: "demain"})
	e.intent(t, callID, models.IntentAcceptSlot, nil)

	d := e.intent(t, callID, models.IntentProvideIdentity, map[string]string{
		models.EntityFirstName:   "Paul",
		models.EntityLastName:    "Nouveau",
		models.EntityDateOfBirth: "2000-01-01",
	})
	assert.Equal(t, models.StateFinalize, d.State)
	assert.Contains(t, d.Say, "nouveau dossier")
}

func TestWeekendRequestShiftsToMonday(t *testing.T) {
	e := newTestEnv(t)

	sess, _, err := e.svc.StartSession(context.Background())
	require.NoError(t, err)
	callID := sess.CallID

	e.intent(t, callID, models.IntentDescribeNeed, map[string]string{models.EntityCategory: "dermatologie"})
	d := e.intent(t, callID, models.IntentRequestSlots, map[string]string{models.EntityDate: "samedi"})
	assert.Contains(t, d.Say, "fermé le week-end")
	assert.Contains(t, d.Say, "lundi 14 septembre")
}

func TestGoodbyeReleasesHold(t *testing.T) {
	e := newTestEnv(t)

	sess, _, err := e.svc.StartSession(context.Background())
	require.NoError(t, err)
	callID := sess.CallID

	e.intent(t, callID, models.IntentDescribeNeed, map[string]string{models.EntityCategory: "dermatologie"})
	e.intent(t, callID, models.IntentRequestSlots, map[string]string{models.EntityDate: "demain"})
	e.intent(t, callID, models.IntentAcceptSlot, nil)

	// One provisional event exists while the hold is live.
	events, _ := e.cal.ListEvents(context.Background(), "cal-derm", thursdaySlot(e, 0, 0), thursdaySlot(e, 23, 59))
	require.Len(t, events, 1)

	d := e.intent(t, callID, models.IntentGoodbye, nil)
	assert.True(t, d.EndCall)
	assert.Equal(t, models.StateAborted, d.State)

	events, _ = e.cal.ListEvents(context.Background(), "cal-derm", thursdaySlot(e, 0, 0), thursdaySlot(e, 23, 59))
	assert.Empty(t, events, "abort must release the provisional event")
}

func TestEndSessionReleasesHold(t *testing.T) {
	e := newTestEnv(t)

	sess, _, err := e.svc.StartSession(context.Background())
	require.NoError(t, err)
	callID := sess.CallID

	e.intent(t, callID, models.IntentDescribeNeed, map[string]string{models.EntityCategory: "dermatologie"})
	e.intent(t, callID, models.IntentRequestSlots, map[string]string{models.EntityDate: "demain"})
	e.intent(t, callID, models.IntentAcceptSlot, nil)

	require.NoError(t, e.svc.EndSession(context.Background(), callID))

	events, _ := e.cal.ListEvents(context.Background(), "cal-derm", thursdaySlot(e, 0, 0), thursdaySlot(e, 23, 59))
	assert.Empty(t, events)

	// Idempotent: a second teardown of a gone session succeeds.
	require.NoError(t, e.svc.EndSession(context.Background(), callID))
}

func TestConfirmAfterHoldExpiryReoffers(t *testing.T) {
	e := newTestEnv(t)

	sess, _, err := e.svc.StartSession(context.Background())
	require.NoError(t, err)
	callID := sess.CallID

	e.intent(t, callID, models.IntentDescribeNeed, map[string]string{models.EntityCategory: "dermatologie"})
	e.intent(t, callID, models.IntentRequestSlots, map[string]string{models.EntityDate: "demain"})
	e.intent(t, callID, models.IntentAcceptSlot, nil)
	e.intent(t, callID, models.IntentProvideIdentity, map[string]string{
		models.EntityFirstName:   "Jeanne",
		models.EntityLastName:    "Dupont",
		models.EntityDateOfBirth: "1990-05-02",
	})

	// Age the hold past its TTL before the confirmation arrives.
	stored, err := e.svc.Sessions.Get(context.Background(), callID)
	require.NoError(t, err)
	stored.Reservation.HeldAt = e.now.Add(-10 * time.Minute)
	require.NoError(t, e.svc.Sessions.Save(context.Background(), stored))

	d := e.intent(t, callID, models.IntentConfirm, nil)
	assert.Equal(t, models.StateFindSlot, d.State)
	assert.Contains(t, d.Say, "expiré")

	// The expired provisional event is gone; nothing is booked.
	events, _ := e.cal.ListEvents(context.Background(), "cal-derm", thursdaySlot(e, 0, 0), thursdaySlot(e, 23, 59))
	assert.Empty(t, events)
}

func TestCurrentDateAnswersWithoutStateChange(t *testing.T) {
	e := newTestEnv(t)

	sess, _, err := e.svc.StartSession(context.Background())
	require.NoError(t, err)

	d := e.intent(t, sess.CallID, models.IntentCurrentDate, nil)
	assert.Contains(t, d.Say, "mercredi 9 septembre")
	assert.Equal(t, models.StateGreeting, d.State)
}

func TestCancelAppointmentByName(t *testing.T) {
	e := newTestEnv(t)

	// An existing booking for Jeanne Dupont on Thursday.
	slot := models.Slot{PractitionerID: "dr-martin", Start: thursdaySlot(e, 14, 0), End: thursdaySlot(e, 14, 30)}
	id, err := e.cal.CreateProvisionalEvent(context.Background(), "cal-derm", slot, "RDV Jeanne Dupont", "")
	require.NoError(t, err)
	require.NoError(t, e.cal.ConfirmEvent(context.Background(), "cal-derm", id))

	sess, _, err := e.svc.StartSession(context.Background())
	require.NoError(t, err)

	d := e.intent(t, sess.CallID, models.IntentCancelAppointment, map[string]string{
		models.EntityFirstName: "Jeanne",
		models.EntityLastName:  "Dupont",
		models.EntityDate:      "demain",
	})
	assert.Contains(t, d.Say, "annulé")

	events, _ := e.cal.ListEvents(context.Background(), "cal-derm", thursdaySlot(e, 0, 0), thursdaySlot(e, 23, 59))
	assert.Empty(t, events)
}

func TestUnknownSpecialtyKeepsConversationAlive(t *testing.T) {
	e := newTestEnv(t)

	sess, _, err := e.svc.StartSession(context.Background())
	require.NoError(t, err)

	d := e.intent(t, sess.CallID, models.IntentDescribeNeed, map[string]string{models.EntityCategory: "neurologie"})
	assert.Equal(t, models.StateUnderstandNeed, d.State)
	assert.False(t, d.EndCall)
}

func TestIntentOnMissingSessionFails(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.svc.HandleIntent(context.Background(), "nope", models.IntentRequest{Intent: models.IntentGreet})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
