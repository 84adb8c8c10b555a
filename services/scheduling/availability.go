package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"clinicvoice/models"
	"clinicvoice/services/calendar"
	"clinicvoice/utils"

	"go.uber.org/zap"
)

// AvailabilityResolver answers free/busy questions for one practitioner and
// turns them into candidate slots. Pure query layer, no mutation.
type AvailabilityResolver interface {
	FreeBusy(ctx context.Context, calendarRef string, from, to time.Time) ([]models.BusyInterval, error)
	CandidateSlots(ctx context.Context, practitionerID, calendarRef string, day time.Time) ([]models.Slot, error)
}

// ClinicHours bound the slots offered each working day.
type ClinicHours struct {
	OpenHour    int
	CloseHour   int
	SlotMinutes int
	Location    *time.Location
}

// DefaultAvailabilityResolver queries the calendar service with bounded
// exponential backoff on transient failures.
type DefaultAvailabilityResolver struct {
	Calendar calendar.API
	Hours    ClinicHours
	Retries  int
	Backoff  time.Duration
	Now      func() time.Time
}

func (r *DefaultAvailabilityResolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// FreeBusy queries busy intervals, retrying transient failures. After the
// retry budget is exhausted the error surfaces as ErrUnavailable: the
// orchestrator reports "cannot confirm" instead of guessing.
func (r *DefaultAvailabilityResolver) FreeBusy(ctx context.Context, calendarRef string, from, to time.Time) ([]models.BusyInterval, error) {
	logger := utils.GetLogger()
	attempts := r.Retries
	if attempts < 1 {
		attempts = 1
	}
	backoff := r.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		busy, err := r.Calendar.FreeBusy(ctx, calendarRef, from, to)
		if err == nil {
			return busy, nil
		}
		lastErr = err
		logger.Warn("freebusy query failed",
			zap.String("calendarRef", calendarRef),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == attempts || ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("freebusy cancelled: %w", ErrUnavailable)
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("freebusy failed after %d attempts: %v: %w", attempts, lastErr, ErrUnavailable)
}

// CandidateSlots returns the free slots for the practitioner on the given
// day, chronological, excluding past slots and anything overlapping a busy
// interval.
func (r *DefaultAvailabilityResolver) CandidateSlots(ctx context.Context, practitionerID, calendarRef string, day time.Time) ([]models.Slot, error) {
	loc := r.Hours.Location
	if loc == nil {
		loc = time.UTC
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	busy, err := r.FreeBusy(ctx, calendarRef, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	return BuildCandidateSlots(practitionerID, dayStart, busy, r.Hours, r.now()), nil
}

// BuildCandidateSlots instantiates the day's slot grid from clinic hours and
// removes every slot that overlaps a busy interval or has already started.
func BuildCandidateSlots(practitionerID string, dayStart time.Time, busy []models.BusyInterval, hours ClinicHours, now time.Time) []models.Slot {
	slotLen := time.Duration(hours.SlotMinutes) * time.Minute
	if slotLen <= 0 {
		slotLen = 30 * time.Minute
	}
	open := dayStart.Add(time.Duration(hours.OpenHour) * time.Hour)
	close := dayStart.Add(time.Duration(hours.CloseHour) * time.Hour)

	var slots []models.Slot
	for start := open; start.Add(slotLen).Before(close) || start.Add(slotLen).Equal(close); start = start.Add(slotLen) {
		end := start.Add(slotLen)
		if !start.After(now) {
			continue
		}
		blocked := false
		for _, b := range busy {
			if start.Before(b.End) && b.Start.Before(end) {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		slots = append(slots, models.Slot{PractitionerID: practitionerID, Start: start, End: end})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}
