package scheduling

import "errors"

// Error taxonomy for slot operations. Every collaborator failure maps onto one
// of these so the orchestrator can decide between retry, re-prompt and abort.
var (
	// ErrConflict means another session won the slot; the caller re-selects.
	ErrConflict = errors.New("slot already claimed")
	// ErrExpired means the hold TTL lapsed before commit; the caller re-selects.
	ErrExpired = errors.New("hold expired")
	// ErrNotFound means the referenced booking no longer exists.
	ErrNotFound = errors.New("booking not found")
	// ErrUnavailable means the calendar backend could not be reached even
	// after retries; the caller must not guess at availability.
	ErrUnavailable = errors.New("availability service unavailable")
)
