package models

// Intent names accepted by the orchestrator. The dialogue engine maps caller
// utterances to one of these plus entities; the orchestrator never sees raw
// audio or text.
const (
	IntentGreet              = "greet"
	IntentDescribeNeed       = "describe_need"
	IntentSelectPractitioner = "select_practitioner"
	IntentRequestSlots       = "request_slots"
	IntentAcceptSlot         = "accept_slot"
	IntentDeclineSlot        = "decline_slot"
	IntentProvideIdentity    = "provide_identity"
	IntentDisambiguate       = "disambiguate_patient"
	IntentConfirm            = "confirm"
	IntentCancelAppointment  = "cancel_appointment"
	IntentCurrentDate        = "current_date"
	IntentGoodbye            = "goodbye"
)

// Entity keys the dialogue engine may attach to an intent.
const (
	EntityCategory       = "category"
	EntityNeedText       = "need_text"
	EntityPractitionerID = "practitioner_id"
	EntityDate           = "date"       // absolute or relative French date
	EntityTime           = "time"       // "14h30", "14h" or "14:30"
	EntityFirstName      = "first_name"
	EntityLastName       = "last_name"
	EntityDateOfBirth    = "date_of_birth"
	EntityPhone          = "phone"
	EntityPatientID      = "patient_id"
	EntityEventID        = "event_id"
	EntityReason         = "reason"
)

// IntentRequest is what the dialogue engine posts per caller turn.
type IntentRequest struct {
	Intent   string            `json:"intent" binding:"required"`
	Entities map[string]string `json:"entities,omitempty"`
}

// PromptOption is one choice the dialogue engine can read out to the caller.
type PromptOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SpokenResponseDirective tells the dialogue engine what to say and what kind
// of answer to listen for next.
type SpokenResponseDirective struct {
	Say     string            `json:"say"`
	Expect  string            `json:"expect,omitempty"` // next intent hint
	Options []PromptOption    `json:"options,omitempty"`
	State   SessionState      `json:"state"`
	EndCall bool              `json:"endCall,omitempty"`
	Facts   map[string]string `json:"facts,omitempty"`
}
