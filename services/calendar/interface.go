package calendar

import (
	"context"
	"errors"
	"time"

	"clinicvoice/models"
)

// Sentinel errors surfaced by calendar implementations.
var (
	// ErrConflict means an overlapping event already occupies the window.
	ErrConflict = errors.New("calendar: conflicting event")
	// ErrNotFound means the referenced event or calendar does not exist.
	ErrNotFound = errors.New("calendar: event not found")
)

// Event is an appointment event as seen on the external calendar.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Provisional bool      `json:"provisional"`
	Created     time.Time `json:"created"`
}

// Info describes one calendar resource (sub-calendar per practitioner).
type Info struct {
	Ref      string `json:"ref"`
	Summary  string `json:"summary"`
	Primary  bool   `json:"primary"`
	TimeZone string `json:"timeZone,omitempty"`
}

// API is the consumed calendar service. The calendar is the source of truth
// for slot occupancy; this process keeps no authoritative copy.
type API interface {
	// FreeBusy returns the busy intervals on a calendar within the window,
	// ordered by start time.
	FreeBusy(ctx context.Context, calendarRef string, from, to time.Time) ([]models.BusyInterval, error)
	// CreateProvisionalEvent claims the slot with a provisional event. The
	// check for overlapping events and the insert are one logical operation:
	// implementations must verify after inserting and back out their own event
	// when another one won the window, returning ErrConflict.
	CreateProvisionalEvent(ctx context.Context, calendarRef string, slot models.Slot, summary, description string) (string, error)
	// ConfirmEvent converts a provisional event into a durable booking.
	ConfirmEvent(ctx context.Context, calendarRef, eventID string) error
	// DeleteEvent removes an event. Returns ErrNotFound if it no longer exists.
	DeleteEvent(ctx context.Context, calendarRef, eventID string) error
	// ListEvents returns all events on the calendar within the window.
	ListEvents(ctx context.Context, calendarRef string, from, to time.Time) ([]Event, error)
	// ListCalendars enumerates the calendar resources visible to the service
	// account (one sub-calendar per practitioner).
	ListCalendars(ctx context.Context) ([]Info, error)
}
