package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinicvoice/models"
	"clinicvoice/services/directory"
	"clinicvoice/services/reconcile"
	"clinicvoice/services/scheduling"
	"clinicvoice/utils"

	"go.uber.org/zap"
)

// handleCurrentDate answers the date question without leaving the current state.
func (s *DefaultSessionService) handleCurrentDate(sess *models.CallSession) *models.SpokenResponseDirective {
	return &models.SpokenResponseDirective{
		Say:   fmt.Sprintf("Nous sommes aujourd'hui %s.", FormatDateFR(s.now())),
		State: sess.State,
	}
}

// handleGoodbye aborts the call, releasing any held slot. A caller hanging up
// after finalization keeps the booking; before, nothing is kept.
func (s *DefaultSessionService) handleGoodbye(ctx context.Context, sess *models.CallSession) *models.SpokenResponseDirective {
	s.releaseHold(ctx, sess)
	sess.State = models.StateAborted
	return &models.SpokenResponseDirective{
		Say:     "Très bien, au revoir et bonne journée.",
		State:   sess.State,
		EndCall: true,
	}
}

// handleUnderstandNeed maps the caller's described need to a specialty and
// finds practitioners covering it.
func (s *DefaultSessionService) handleUnderstandNeed(ctx context.Context, sess *models.CallSession, req models.IntentRequest) (*models.SpokenResponseDirective, error) {
	if req.Intent == models.IntentGreet {
		sess.State = models.StateUnderstandNeed
		return &models.SpokenResponseDirective{
			Say:    "Bonjour ! Quel est le motif de votre appel ?",
			Expect: models.IntentDescribeNeed,
		}, nil
	}
	if req.Intent != models.IntentDescribeNeed {
		return s.reprompt(sess, "Pouvez-vous me préciser le motif de votre rendez-vous ?", models.IntentDescribeNeed), nil
	}

	category := strings.TrimSpace(req.Entities[models.EntityCategory])
	sess.NeedText = req.Entities[models.EntityNeedText]
	if category == "" {
		sess.State = models.StateUnderstandNeed
		return &models.SpokenResponseDirective{
			Say:    "Je vois. Est-ce plutôt pour une consultation générale, dermatologique, cardiologique, pédiatrique, gynécologique ou ophtalmologique ?",
			Expect: models.IntentDescribeNeed,
		}, nil
	}
	sess.NeedCategory = strings.ToLower(category)

	practitioners, err := s.Directory.FindBySpecialty(ctx, sess.NeedCategory)
	if errors.Is(err, directory.ErrNotFound) {
		sess.State = models.StateUnderstandNeed
		return &models.SpokenResponseDirective{
			Say:    fmt.Sprintf("Je suis désolée, aucun de nos praticiens ne prend en charge %s. Puis-je vous aider pour autre chose ?", sess.NeedCategory),
			Expect: models.IntentDescribeNeed,
		}, nil
	}
	if errors.Is(err, directory.ErrUnavailable) {
		return s.directoryDown(sess), nil
	}
	if err != nil {
		return nil, err
	}

	if len(practitioners) == 1 {
		p := practitioners[0]
		sess.Practitioner = &p
		sess.State = models.StateFindSlot
		return &models.SpokenResponseDirective{
			Say:    fmt.Sprintf("Très bien, je vous propose un rendez-vous avec %s. Quel jour vous conviendrait ?", p.Name),
			Expect: models.IntentRequestSlots,
		}, nil
	}

	sess.State = models.StateIdentifyPractitioner
	options := make([]models.PromptOption, 0, len(practitioners))
	names := make([]string, 0, len(practitioners))
	for _, p := range practitioners {
		options = append(options, models.PromptOption{Label: p.Name, Value: p.ID})
		names = append(names, p.Name)
	}
	return &models.SpokenResponseDirective{
		Say:     fmt.Sprintf("Plusieurs praticiens peuvent vous recevoir : %s. Avec qui souhaitez-vous prendre rendez-vous ?", strings.Join(names, ", ")),
		Expect:  models.IntentSelectPractitioner,
		Options: options,
	}, nil
}

// handleIdentifyPractitioner resolves the caller's choice among the
// practitioners covering the need.
func (s *DefaultSessionService) handleIdentifyPractitioner(ctx context.Context, sess *models.CallSession, req models.IntentRequest) (*models.SpokenResponseDirective, error) {
	if req.Intent != models.IntentSelectPractitioner {
		return s.reprompt(sess, "Avec quel praticien souhaitez-vous prendre rendez-vous ?", models.IntentSelectPractitioner), nil
	}

	if id := req.Entities[models.EntityPractitionerID]; id != "" {
		p, err := s.Directory.GetByID(ctx, id)
		if errors.Is(err, directory.ErrUnavailable) {
			return s.directoryDown(sess), nil
		}
		if err == nil {
			sess.Practitioner = p
		}
	}

	if sess.Practitioner == nil {
		spoken := strings.ToLower(req.Entities[models.EntityNeedText])
		candidates, err := s.Directory.FindBySpecialty(ctx, sess.NeedCategory)
		if errors.Is(err, directory.ErrUnavailable) {
			return s.directoryDown(sess), nil
		}
		if err != nil && !errors.Is(err, directory.ErrNotFound) {
			return nil, err
		}
		for i := range candidates {
			if spoken != "" && strings.Contains(spoken, strings.ToLower(lastNameOf(candidates[i].Name))) {
				sess.Practitioner = &candidates[i]
				break
			}
		}
	}

	if sess.Practitioner == nil {
		return s.reprompt(sess, "Je n'ai pas reconnu ce praticien. Pouvez-vous répéter son nom ?", models.IntentSelectPractitioner), nil
	}

	sess.State = models.StateFindSlot
	return &models.SpokenResponseDirective{
		Say:    fmt.Sprintf("Parfait, un rendez-vous avec %s. Quel jour vous conviendrait ?", sess.Practitioner.Name),
		Expect: models.IntentRequestSlots,
	}, nil
}

// handleFindSlot runs the offer loop: load candidates for the requested day,
// propose them one at a time, hold the accepted one.
func (s *DefaultSessionService) handleFindSlot(ctx context.Context, sess *models.CallSession, req models.IntentRequest) (*models.SpokenResponseDirective, error) {
	if sess.Practitioner == nil {
		sess.State = models.StateUnderstandNeed
		return s.reprompt(sess, "Reprenons. Quel est le motif de votre rendez-vous ?", models.IntentDescribeNeed), nil
	}

	switch req.Intent {
	case models.IntentRequestSlots:
		return s.offerSlotsForDate(ctx, sess, req.Entities[models.EntityDate], req.Entities[models.EntityTime])

	case models.IntentDeclineSlot:
		// A declined offer with a new date restarts the search there.
		if d := req.Entities[models.EntityDate]; d != "" {
			return s.offerSlotsForDate(ctx, sess, d, req.Entities[models.EntityTime])
		}
		sess.OfferIndex++
		return s.proposeCurrent(sess), nil

	case models.IntentAcceptSlot:
		return s.acceptSlot(ctx, sess, req)

	default:
		return s.reprompt(sess, "Quel jour souhaitez-vous venir ?", models.IntentRequestSlots), nil
	}
}

// offerSlotsForDate loads the candidate slots for the spoken day and proposes
// the first one. Weekend requests shift to the next Monday.
func (s *DefaultSessionService) offerSlotsForDate(ctx context.Context, sess *models.CallSession, dateExpr, timeExpr string) (*models.SpokenResponseDirective, error) {
	if dateExpr == "" {
		return s.reprompt(sess, "Pour quel jour souhaitez-vous ce rendez-vous ?", models.IntentRequestSlots), nil
	}

	now := s.now()
	day, err := ParseFrenchDate(dateExpr, now)
	if err != nil {
		return s.reprompt(sess, "Je n'ai pas compris la date. Pouvez-vous la répéter, par exemple « demain » ou « lundi prochain » ?", models.IntentRequestSlots), nil
	}

	var shifted bool
	if adjusted := NextWorkday(day); !adjusted.Equal(day) {
		day = adjusted
		shifted = true
	}
	if day.Before(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())) {
		return s.reprompt(sess, "Cette date est déjà passée. Quel autre jour vous conviendrait ?", models.IntentRequestSlots), nil
	}

	slots, err := s.Reservations.ListCandidates(ctx, sess.Practitioner.ID, sess.Practitioner.CalendarRef, day)
	if errors.Is(err, scheduling.ErrUnavailable) {
		return &models.SpokenResponseDirective{
			Say:    "Je suis désolée, je ne peux pas consulter l'agenda pour le moment. Pouvez-vous rappeler un peu plus tard ?",
			Expect: models.IntentRequestSlots,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	sess.Candidates = slots
	sess.OfferIndex = 0
	sess.WindowDate = day.Format("2006-01-02")

	// A spoken preferred time jumps the offer cursor to the closest match.
	if timeExpr != "" {
		if hour, minute, terr := ParseTimeOfDay(timeExpr); terr == nil {
			for i, slot := range slots {
				if slot.Start.Hour() == hour && slot.Start.Minute() == minute {
					sess.OfferIndex = i
					break
				}
			}
		}
	}

	directive := s.proposeCurrent(sess)
	if shifted && len(slots) > 0 {
		directive.Say = fmt.Sprintf("Le cabinet est fermé le week-end, je regarde donc le %s. %s", FormatDateFR(day), directive.Say)
	}
	return directive, nil
}

// proposeCurrent proposes the slot at OfferIndex, or asks for another day
// when the list is exhausted.
func (s *DefaultSessionService) proposeCurrent(sess *models.CallSession) *models.SpokenResponseDirective {
	if sess.OfferIndex >= len(sess.Candidates) {
		return &models.SpokenResponseDirective{
			Say:    "Je n'ai plus de créneau disponible ce jour-là. Un autre jour vous conviendrait-il ?",
			Expect: models.IntentRequestSlots,
		}
	}
	slot := sess.Candidates[sess.OfferIndex]
	return &models.SpokenResponseDirective{
		Say:    fmt.Sprintf("Je peux vous proposer le %s à %s. Cela vous convient-il ?", FormatDateFR(slot.Start), FormatTimeFR(slot.Start)),
		Expect: models.IntentAcceptSlot,
	}
}

// acceptSlot holds the accepted slot. On conflict the candidates are
// refreshed and the next free slot proposed.
func (s *DefaultSessionService) acceptSlot(ctx context.Context, sess *models.CallSession, req models.IntentRequest) (*models.SpokenResponseDirective, error) {
	if len(sess.Candidates) == 0 {
		return s.reprompt(sess, "Quel jour souhaitez-vous venir ?", models.IntentRequestSlots), nil
	}

	idx := sess.OfferIndex
	if t := req.Entities[models.EntityTime]; t != "" {
		if hour, minute, err := ParseTimeOfDay(t); err == nil {
			for i, slot := range sess.Candidates {
				if slot.Start.Hour() == hour && slot.Start.Minute() == minute {
					idx = i
					break
				}
			}
		}
	}
	if idx >= len(sess.Candidates) {
		return s.proposeCurrent(sess), nil
	}
	slot := sess.Candidates[idx]

	summary := fmt.Sprintf("RDV %s", sess.NeedCategory)
	description := fmt.Sprintf("Réservation téléphonique, appel %s", sess.CallID)
	res, err := s.Reservations.Hold(ctx, sess.Practitioner.CalendarRef, slot, summary, description)
	if errors.Is(err, scheduling.ErrConflict) {
		utils.GetLogger().Info("slot lost to concurrent booking",
			zap.String("callID", sess.CallID), zap.String("slot", slot.Key()))
		return s.refreshAfterConflict(ctx, sess)
	}
	if errors.Is(err, scheduling.ErrUnavailable) {
		return &models.SpokenResponseDirective{
			Say:    "Je suis désolée, je ne peux pas réserver ce créneau pour le moment. Pouvez-vous rappeler un peu plus tard ?",
			Expect: models.IntentRequestSlots,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	sess.Reservation = res
	sess.State = models.StateReconcilePatient
	return &models.SpokenResponseDirective{
		Say:    fmt.Sprintf("Très bien, je vous réserve le %s à %s. Pouvez-vous me donner votre nom, votre prénom et votre date de naissance ?", FormatDateFR(slot.Start), FormatTimeFR(slot.Start)),
		Expect: models.IntentProvideIdentity,
	}, nil
}

// refreshAfterConflict reloads the day's candidates and proposes the next
// free slot.
func (s *DefaultSessionService) refreshAfterConflict(ctx context.Context, sess *models.CallSession) (*models.SpokenResponseDirective, error) {
	day, err := time.ParseInLocation("2006-01-02", sess.WindowDate, s.now().Location())
	if err != nil {
		day = s.now()
	}
	slots, err := s.Reservations.ListCandidates(ctx, sess.Practitioner.ID, sess.Practitioner.CalendarRef, day)
	if err != nil {
		slots = nil
	}
	sess.Candidates = slots
	sess.OfferIndex = 0
	sess.State = models.StateFindSlot
	sess.Reservation = nil

	directive := s.proposeCurrent(sess)
	directive.Say = "Ce créneau vient malheureusement d'être pris. " + directive.Say
	return directive, nil
}

// handleReconcilePatient links the caller's identity to a patient record.
func (s *DefaultSessionService) handleReconcilePatient(ctx context.Context, sess *models.CallSession, req models.IntentRequest) (*models.SpokenResponseDirective, error) {
	switch req.Intent {
	case models.IntentProvideIdentity:
		identity := models.PatientIdentity{
			FirstName:   req.Entities[models.EntityFirstName],
			LastName:    req.Entities[models.EntityLastName],
			DateOfBirth: req.Entities[models.EntityDateOfBirth],
			Phone:       req.Entities[models.EntityPhone],
		}
		if identity.FirstName == "" || identity.LastName == "" || identity.DateOfBirth == "" {
			return s.reprompt(sess, "Il me faut votre prénom, votre nom et votre date de naissance pour finaliser.", models.IntentProvideIdentity), nil
		}

		record, err := s.Reconciler.Resolve(ctx, identity)
		if errors.Is(err, reconcile.ErrAmbiguous) {
			matches, _ := s.Reconciler.FindMatches(ctx, identity)
			sess.PendingMatches = matches
			sess.Patient = &models.PatientRecord{Identity: identity}
			return s.reprompt(sess, "Plusieurs dossiers correspondent à votre identité. Quel est votre numéro de téléphone ?", models.IntentDisambiguate), nil
		}
		if err != nil {
			return nil, err
		}
		return s.patientResolved(sess, record), nil

	case models.IntentDisambiguate:
		phone := req.Entities[models.EntityPhone]
		if sess.Patient == nil || phone == "" {
			return s.reprompt(sess, "Quel est votre numéro de téléphone ?", models.IntentDisambiguate), nil
		}
		record, err := s.Reconciler.Disambiguate(ctx, sess.Patient.Identity, phone)
		if errors.Is(err, reconcile.ErrAmbiguous) {
			return s.reprompt(sess, "Je ne parviens toujours pas à vous identifier. Pouvez-vous épeler votre nom ?", models.IntentProvideIdentity), nil
		}
		if err != nil {
			return nil, err
		}
		return s.patientResolved(sess, record), nil

	default:
		return s.reprompt(sess, "Pouvez-vous me donner votre nom, votre prénom et votre date de naissance ?", models.IntentProvideIdentity), nil
	}
}

// patientResolved records the match outcome and moves to the recap.
func (s *DefaultSessionService) patientResolved(sess *models.CallSession, record *models.PatientRecord) *models.SpokenResponseDirective {
	sess.Patient = record
	sess.PatientResolved = true
	sess.PendingMatches = nil
	sess.State = models.StateFinalize

	slot := sess.Reservation.Slot
	say := fmt.Sprintf("Je récapitule : rendez-vous avec %s le %s à %s pour %s %s. Confirmez-vous ?",
		sess.Practitioner.Name, FormatDateFR(slot.Start), FormatTimeFR(slot.Start),
		record.Identity.FirstName, record.Identity.LastName)
	if record.IsNew {
		say = "Je vous ai créé un nouveau dossier patient. " + say
	}
	return &models.SpokenResponseDirective{
		Say:    say,
		Expect: models.IntentConfirm,
		Facts: map[string]string{
			"patientId": record.ID,
			"eventId":   sess.Reservation.EventID,
		},
	}
}

// handleFinalize commits the held slot on confirmation. An expired or stolen
// hold sends the conversation back to slot search.
func (s *DefaultSessionService) handleFinalize(ctx context.Context, sess *models.CallSession, req models.IntentRequest) (*models.SpokenResponseDirective, error) {
	switch req.Intent {
	case models.IntentConfirm:
		err := s.Reservations.Commit(ctx, sess.Practitioner.CalendarRef, sess.Reservation)
		if errors.Is(err, scheduling.ErrExpired) || errors.Is(err, scheduling.ErrConflict) {
			directive, derr := s.refreshAfterConflict(ctx, sess)
			if derr != nil {
				return nil, derr
			}
			directive.Say = "Je suis désolée, la réservation de ce créneau a expiré. " + directive.Say
			return directive, nil
		}
		if err != nil {
			return nil, err
		}

		sess.State = models.StateFinalized
		s.scheduleReminder(ctx, sess)
		slot := sess.Reservation.Slot
		return &models.SpokenResponseDirective{
			Say: fmt.Sprintf("C'est noté ! Votre rendez-vous avec %s est confirmé le %s à %s. Au revoir !",
				sess.Practitioner.Name, FormatDateFR(slot.Start), FormatTimeFR(slot.Start)),
			EndCall: true,
			Facts:   map[string]string{"eventId": sess.Reservation.EventID},
		}, nil

	case models.IntentDeclineSlot:
		s.releaseHold(ctx, sess)
		sess.Reservation = nil
		sess.State = models.StateFindSlot
		return s.reprompt(sess, "Bien sûr, annulons ce créneau. Quel autre jour vous conviendrait ?", models.IntentRequestSlots), nil

	default:
		return s.reprompt(sess, "Confirmez-vous ce rendez-vous ?", models.IntentConfirm), nil
	}
}

// handleCancelAppointment deletes an existing booking, located either by its
// event id or by patient name and date on the practitioner's calendar.
func (s *DefaultSessionService) handleCancelAppointment(ctx context.Context, sess *models.CallSession, req models.IntentRequest) (*models.SpokenResponseDirective, error) {
	eventID := req.Entities[models.EntityEventID]

	if eventID != "" && sess.Practitioner != nil {
		if err := s.Reservations.Cancel(ctx, sess.Practitioner.CalendarRef, eventID); err != nil {
			if errors.Is(err, scheduling.ErrNotFound) {
				return &models.SpokenResponseDirective{Say: "Je ne trouve pas ce rendez-vous, il a peut-être déjà été annulé."}, nil
			}
			return nil, err
		}
		return &models.SpokenResponseDirective{Say: "Votre rendez-vous a bien été annulé."}, nil
	}

	first := req.Entities[models.EntityFirstName]
	last := req.Entities[models.EntityLastName]
	dateExpr := req.Entities[models.EntityDate]
	if last == "" || dateExpr == "" {
		return &models.SpokenResponseDirective{
			Say:    "Pour annuler, il me faut votre nom et la date du rendez-vous.",
			Expect: models.IntentCancelAppointment,
		}, nil
	}

	day, err := ParseFrenchDate(dateExpr, s.now())
	if err != nil {
		return &models.SpokenResponseDirective{
			Say:    "Je n'ai pas compris la date du rendez-vous à annuler. Pouvez-vous la répéter ?",
			Expect: models.IntentCancelAppointment,
		}, nil
	}

	practitioners, err := s.Directory.All(ctx)
	if errors.Is(err, directory.ErrUnavailable) {
		return s.directoryDown(sess), nil
	}
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(first + " " + last))
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	for _, p := range practitioners {
		events, err := s.Calendar.ListEvents(ctx, p.CalendarRef, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			continue
		}
		for _, ev := range events {
			haystack := strings.ToLower(ev.Summary + " " + ev.Description)
			if strings.Contains(haystack, strings.ToLower(last)) || (needle != "" && strings.Contains(haystack, needle)) {
				if cerr := s.Reservations.Cancel(ctx, p.CalendarRef, ev.ID); cerr != nil {
					return nil, cerr
				}
				return &models.SpokenResponseDirective{
					Say: fmt.Sprintf("Votre rendez-vous du %s à %s avec %s a bien été annulé.",
						FormatDateFR(ev.Start), FormatTimeFR(ev.Start), p.Name),
				}, nil
			}
		}
	}

	return &models.SpokenResponseDirective{
		Say: fmt.Sprintf("Je ne trouve aucun rendez-vous au nom de %s le %s.", last, FormatDateFR(day)),
	}, nil
}

// scheduleReminder enqueues the booking confirmation follow-up. Best effort.
func (s *DefaultSessionService) scheduleReminder(ctx context.Context, sess *models.CallSession) {
	if s.Reminders == nil || sess.Patient == nil {
		return
	}
	if err := s.Reminders.EnqueueBookingReminder(ctx, *sess.Patient, *sess.Practitioner, sess.Reservation.Slot); err != nil {
		utils.GetLogger().Warn("failed to enqueue booking reminder",
			zap.String("callID", sess.CallID), zap.Error(err))
	}
}

func (s *DefaultSessionService) reprompt(sess *models.CallSession, say, expect string) *models.SpokenResponseDirective {
	return &models.SpokenResponseDirective{Say: say, Expect: expect, State: sess.State}
}

func (s *DefaultSessionService) directoryDown(sess *models.CallSession) *models.SpokenResponseDirective {
	return &models.SpokenResponseDirective{
		Say:   "Je suis désolée, je ne peux pas accéder à la liste des praticiens pour le moment. Pouvez-vous rappeler dans quelques minutes ?",
		State: sess.State,
	}
}

func lastNameOf(full string) string {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return full
	}
	return parts[len(parts)-1]
}
