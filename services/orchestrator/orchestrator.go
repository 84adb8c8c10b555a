package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinicvoice/models"
	"clinicvoice/services/calendar"
	"clinicvoice/services/directory"
	"clinicvoice/services/reconcile"
	"clinicvoice/services/scheduling"
	"clinicvoice/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSessionService wires the conversation state machine to the
// directory, reservation manager, patient reconciler and session store.
type DefaultSessionService struct {
	Directory    directory.Service
	Reservations scheduling.ReservationManager
	Reconciler   reconcile.Service
	Sessions     SessionStore
	Reminders    ReminderScheduler
	// Calendar is used directly only for cancellation lookups by name; all
	// booking mutations go through Reservations.
	Calendar calendar.API
	Location *time.Location
	Now      func() time.Time
}

func (s *DefaultSessionService) now() time.Time {
	n := time.Now()
	if s.Now != nil {
		n = s.Now()
	}
	if s.Location != nil {
		n = n.In(s.Location)
	}
	return n
}

// StartSession creates a session in the greeting state.
func (s *DefaultSessionService) StartSession(ctx context.Context) (*models.CallSession, *models.SpokenResponseDirective, error) {
	sess := &models.CallSession{
		CallID:    uuid.NewString(),
		State:     models.StateGreeting,
		CreatedAt: time.Now(),
	}
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return nil, nil, err
	}

	utils.GetLogger().Info("call session started", zap.String("callID", sess.CallID))
	return sess, &models.SpokenResponseDirective{
		Say:    "Bonjour, cabinet médical, que puis-je faire pour vous ?",
		Expect: models.IntentDescribeNeed,
		State:  sess.State,
	}, nil
}

// HandleIntent advances the conversation by one turn. The session is loaded,
// mutated by exactly one transition and saved back before the directive is
// returned.
func (s *DefaultSessionService) HandleIntent(ctx context.Context, callID string, req models.IntentRequest) (*models.SpokenResponseDirective, error) {
	unlock := s.Sessions.Lock(callID)
	defer unlock()

	sess, err := s.Sessions.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if sess.State.Terminal() {
		return nil, fmt.Errorf("session %s already ended", callID)
	}
	if req.Entities == nil {
		req.Entities = map[string]string{}
	}

	directive, err := s.dispatch(ctx, sess, req)
	if err != nil {
		return nil, err
	}

	if err := s.Sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	directive.State = sess.State
	return directive, nil
}

// EndSession releases any held slot and removes the session. Idempotent.
func (s *DefaultSessionService) EndSession(ctx context.Context, callID string) error {
	unlock := s.Sessions.Lock(callID)
	defer unlock()

	sess, err := s.Sessions.Get(ctx, callID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.releaseHold(ctx, sess)
	if err := s.Sessions.Delete(ctx, callID); err != nil {
		return err
	}
	utils.GetLogger().Info("call session ended", zap.String("callID", callID), zap.String("state", string(sess.State)))
	return nil
}

// releaseHold drops a held reservation if one exists. Committed bookings are
// never touched here.
func (s *DefaultSessionService) releaseHold(ctx context.Context, sess *models.CallSession) {
	if sess.Reservation == nil || sess.Reservation.State != models.ReservationHeld {
		return
	}
	if sess.Practitioner == nil {
		return
	}
	if err := s.Reservations.Release(ctx, sess.Practitioner.CalendarRef, sess.Reservation); err != nil {
		utils.GetLogger().Warn("failed to release hold on session teardown",
			zap.String("callID", sess.CallID), zap.Error(err))
	}
}

// dispatch routes one intent. Global intents work from any state; the rest
// go to the handler for the session's current state.
func (s *DefaultSessionService) dispatch(ctx context.Context, sess *models.CallSession, req models.IntentRequest) (*models.SpokenResponseDirective, error) {
	switch req.Intent {
	case models.IntentCurrentDate:
		return s.handleCurrentDate(sess), nil
	case models.IntentGoodbye:
		return s.handleGoodbye(ctx, sess), nil
	case models.IntentCancelAppointment:
		return s.handleCancelAppointment(ctx, sess, req)
	}

	switch sess.State {
	case models.StateGreeting, models.StateUnderstandNeed:
		return s.handleUnderstandNeed(ctx, sess, req)
	case models.StateIdentifyPractitioner:
		return s.handleIdentifyPractitioner(ctx, sess, req)
	case models.StateFindSlot:
		return s.handleFindSlot(ctx, sess, req)
	case models.StateReconcilePatient:
		return s.handleReconcilePatient(ctx, sess, req)
	case models.StateFinalize:
		return s.handleFinalize(ctx, sess, req)
	default:
		return nil, fmt.Errorf("no transition from state %s", sess.State)
	}
}
