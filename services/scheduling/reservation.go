package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clinicvoice/models"
	"clinicvoice/services/calendar"
	"clinicvoice/utils"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const holdKeyPrefix = "hold:"

// ReservationManager owns the slot lifecycle: candidate listing, temporary
// hold, durable commit and release. The calendar remains the source of truth
// for occupancy; holds live in Redis with a TTL so an abandoned session can
// never pin a slot forever.
type ReservationManager interface {
	ListCandidates(ctx context.Context, practitionerID, calendarRef string, day time.Time) ([]models.Slot, error)
	Hold(ctx context.Context, calendarRef string, slot models.Slot, summary, description string) (*models.Reservation, error)
	Commit(ctx context.Context, calendarRef string, res *models.Reservation) error
	Release(ctx context.Context, calendarRef string, res *models.Reservation) error
	Cancel(ctx context.Context, calendarRef, eventID string) error
}

// DefaultReservationManager implements the hold protocol in three layers: a
// per-slot mutex serializes callers inside this process, a Redis SETNX claim
// arbitrates between sessions, and the calendar's provisional event settles
// races with any external writer.
type DefaultReservationManager struct {
	Calendar     calendar.API
	Availability AvailabilityResolver
	HoldClient   *redis.Client
	HoldTTL      time.Duration
	Now          func() time.Time

	locks keyedMutex
}

func (m *DefaultReservationManager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// ListCandidates returns the free slots for the day, excluding slots another
// session currently holds.
func (m *DefaultReservationManager) ListCandidates(ctx context.Context, practitionerID, calendarRef string, day time.Time) ([]models.Slot, error) {
	slots, err := m.Availability.CandidateSlots(ctx, practitionerID, calendarRef, day)
	if err != nil {
		return nil, err
	}

	free := slots[:0]
	for _, slot := range slots {
		n, err := m.HoldClient.Exists(ctx, holdKeyPrefix+slot.Key()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check hold for slot %s: %w", slot.Key(), err)
		}
		if n == 0 {
			free = append(free, slot)
		}
	}
	return free, nil
}

// Hold claims the slot for this session. On success the slot is backed by a
// provisional calendar event and a Redis claim that expires after HoldTTL.
// ErrConflict means someone else got there first.
func (m *DefaultReservationManager) Hold(ctx context.Context, calendarRef string, slot models.Slot, summary, description string) (*models.Reservation, error) {
	unlock := m.locks.lock(slot.Key())
	defer unlock()

	token := uuid.NewString()
	key := holdKeyPrefix + slot.Key()

	ok, err := m.HoldClient.SetNX(ctx, key, token, m.HoldTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim hold for slot %s: %w", slot.Key(), err)
	}
	if !ok {
		return nil, ErrConflict
	}

	eventID, err := m.Calendar.CreateProvisionalEvent(ctx, calendarRef, slot, summary, description)
	if err != nil {
		if delErr := m.HoldClient.Del(context.Background(), key).Err(); delErr != nil {
			utils.GetLogger().Warn("failed to release redis hold after calendar conflict",
				zap.String("slot", slot.Key()), zap.Error(delErr))
		}
		if errors.Is(err, calendar.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create provisional event: %w", err)
	}

	return &models.Reservation{
		Slot:      slot,
		HoldToken: token,
		EventID:   eventID,
		State:     models.ReservationHeld,
		HeldAt:    m.now(),
		TTL:       m.HoldTTL,
	}, nil
}

// Commit converts a held reservation into a durable booking. A lapsed TTL or
// a stolen claim surfaces as ErrExpired so the caller re-enters slot search.
func (m *DefaultReservationManager) Commit(ctx context.Context, calendarRef string, res *models.Reservation) error {
	if res == nil {
		return ErrNotFound
	}
	unlock := m.locks.lock(res.Slot.Key())
	defer unlock()

	if res.State != models.ReservationHeld || res.HoldExpired(m.now()) {
		m.cleanupExpired(ctx, calendarRef, res)
		return ErrExpired
	}

	key := holdKeyPrefix + res.Slot.Key()
	current, err := m.HoldClient.Get(ctx, key).Result()
	if err == redis.Nil || (err == nil && current != res.HoldToken) {
		m.cleanupExpired(ctx, calendarRef, res)
		return ErrExpired
	}
	if err != nil {
		return fmt.Errorf("failed to verify hold for slot %s: %w", res.Slot.Key(), err)
	}

	if err := m.Calendar.ConfirmEvent(ctx, calendarRef, res.EventID); err != nil {
		if errors.Is(err, calendar.ErrNotFound) {
			// The provisional event is gone. Drop our claim too so the slot
			// reappears in the candidate list immediately.
			m.dropClaim(ctx, res)
			res.State = models.ReservationExpired
			return ErrConflict
		}
		return fmt.Errorf("failed to confirm event %s: %w", res.EventID, err)
	}

	res.State = models.ReservationCommitted
	if err := m.HoldClient.Del(ctx, key).Err(); err != nil {
		utils.GetLogger().Warn("failed to drop redis hold after commit",
			zap.String("slot", res.Slot.Key()), zap.Error(err))
	}
	return nil
}

// Release drops a hold. Idempotent: releasing an already released, expired or
// nil reservation is a no-op and never an error.
func (m *DefaultReservationManager) Release(ctx context.Context, calendarRef string, res *models.Reservation) error {
	if res == nil || res.State == models.ReservationReleased || res.State == models.ReservationExpired {
		return nil
	}
	unlock := m.locks.lock(res.Slot.Key())
	defer unlock()

	logger := utils.GetLogger()
	if res.EventID != "" {
		if err := m.Calendar.DeleteEvent(ctx, calendarRef, res.EventID); err != nil && !errors.Is(err, calendar.ErrNotFound) {
			logger.Warn("failed to delete provisional event on release",
				zap.String("eventID", res.EventID), zap.Error(err))
		}
	}

	m.dropClaim(ctx, res)
	res.State = models.ReservationReleased
	return nil
}

// Cancel deletes an existing booking by event id.
func (m *DefaultReservationManager) Cancel(ctx context.Context, calendarRef, eventID string) error {
	if err := m.Calendar.DeleteEvent(ctx, calendarRef, eventID); err != nil {
		if errors.Is(err, calendar.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to cancel booking %s: %w", eventID, err)
	}
	return nil
}

// cleanupExpired backs out the calendar event and redis claim of a hold that
// can no longer be committed. Best effort.
func (m *DefaultReservationManager) cleanupExpired(ctx context.Context, calendarRef string, res *models.Reservation) {
	logger := utils.GetLogger()
	if res.EventID != "" {
		if err := m.Calendar.DeleteEvent(ctx, calendarRef, res.EventID); err != nil && !errors.Is(err, calendar.ErrNotFound) {
			logger.Warn("failed to delete event for expired hold",
				zap.String("eventID", res.EventID), zap.Error(err))
		}
	}
	m.dropClaim(ctx, res)
	res.State = models.ReservationExpired
}

// dropClaim deletes the reservation's redis claim, but only while it still
// carries our token. Best effort.
func (m *DefaultReservationManager) dropClaim(ctx context.Context, res *models.Reservation) {
	logger := utils.GetLogger()
	key := holdKeyPrefix + res.Slot.Key()
	current, err := m.HoldClient.Get(ctx, key).Result()
	if err == nil && current == res.HoldToken {
		if err := m.HoldClient.Del(ctx, key).Err(); err != nil {
			logger.Warn("failed to drop redis hold",
				zap.String("slot", res.Slot.Key()), zap.Error(err))
		}
	} else if err != nil && err != redis.Nil {
		logger.Warn("failed to read redis hold",
			zap.String("slot", res.Slot.Key()), zap.Error(err))
	}
}

// keyedMutex serializes operations on the same slot key within this process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*slotLock
}

type slotLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*slotLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &slotLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
