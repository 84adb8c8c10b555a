package models

import "time"

// SessionState is one node of the conversation state machine.
type SessionState string

const (
	StateGreeting             SessionState = "greeting"
	StateUnderstandNeed       SessionState = "understand_need"
	StateIdentifyPractitioner SessionState = "identify_practitioner"
	StateFindSlot             SessionState = "find_slot"
	StateReconcilePatient     SessionState = "reconcile_patient"
	StateFinalize             SessionState = "finalize"
	StateFinalized            SessionState = "finalized"
	StateAborted              SessionState = "aborted"
)

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s == StateFinalized || s == StateAborted
}

// CallSession holds all conversation context between intents. Persisted as
// JSON in Redis for the lifetime of the call; exactly one live session per
// call.
type CallSession struct {
	CallID       string       `json:"callId"`
	State        SessionState `json:"state"`
	NeedCategory string       `json:"needCategory,omitempty"`
	NeedText     string       `json:"needText,omitempty"`

	Practitioner *Practitioner `json:"practitioner,omitempty"`

	// Candidate slots currently on offer, chronological. OfferIndex points at
	// the next slot to propose when the caller declines.
	Candidates []Slot `json:"candidates,omitempty"`
	OfferIndex int    `json:"offerIndex,omitempty"`
	WindowDate string `json:"windowDate,omitempty"` // YYYY-MM-DD day under discussion

	Reservation *Reservation `json:"reservation,omitempty"`

	Patient *PatientRecord `json:"patient,omitempty"`
	// PatientResolved marks that is_new has been decided; it is never revised.
	PatientResolved bool `json:"patientResolved,omitempty"`
	// PendingMatches holds ambiguous reconciliation results awaiting a
	// disambiguation turn.
	PendingMatches []PatientRecord `json:"pendingMatches,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
