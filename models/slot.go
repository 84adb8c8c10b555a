package models

import (
	"fmt"
	"time"
)

// Slot is a bookable interval on one practitioner's calendar. Value type;
// slots are never mutated, only superseded by fresh availability queries.
type Slot struct {
	PractitionerID string    `json:"practitionerId"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
}

// Key returns the canonical identity of the slot, used for hold claims and
// in-process serialization.
func (s Slot) Key() string {
	return fmt.Sprintf("%s|%d|%d", s.PractitionerID, s.Start.Unix(), s.End.Unix())
}

// Equal reports slot identity: same practitioner, same window.
func (s Slot) Equal(o Slot) bool {
	return s.PractitionerID == o.PractitionerID && s.Start.Equal(o.Start) && s.End.Equal(o.End)
}

// Overlaps reports whether two slots share any time on the same calendar.
func (s Slot) Overlaps(o Slot) bool {
	return s.PractitionerID == o.PractitionerID && s.Start.Before(o.End) && o.Start.Before(s.End)
}

// BusyInterval is one occupied window returned by a free/busy query.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ReservationState tracks a reservation through its lifecycle.
type ReservationState string

const (
	ReservationHeld      ReservationState = "held"
	ReservationCommitted ReservationState = "committed"
	ReservationReleased  ReservationState = "released"
	ReservationExpired   ReservationState = "expired"
)

// Reservation is a claim on a slot. While Held it is owned by the reservation
// manager; once Committed, ownership moves to the calendar service and the
// EventID is kept only for cancellation.
type Reservation struct {
	Slot      Slot             `json:"slot"`
	HoldToken string           `json:"holdToken"`
	EventID   string           `json:"eventId"`
	State     ReservationState `json:"state"`
	HeldAt    time.Time        `json:"heldAt"`
	TTL       time.Duration    `json:"ttl"`
}

// ExpiresAt returns the instant after which the hold may no longer be committed.
func (r Reservation) ExpiresAt() time.Time {
	return r.HeldAt.Add(r.TTL)
}

// HoldExpired reports whether the hold TTL has elapsed at the given instant.
func (r Reservation) HoldExpired(now time.Time) bool {
	return r.State == ReservationHeld && now.After(r.ExpiresAt())
}
