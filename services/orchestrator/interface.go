package orchestrator

import (
	"context"

	"clinicvoice/models"
)

// ReminderScheduler enqueues post-booking follow-ups for the background
// worker. Failures to enqueue never fail the booking.
type ReminderScheduler interface {
	EnqueueBookingReminder(ctx context.Context, patient models.PatientRecord, practitioner models.Practitioner, slot models.Slot) error
}

// SessionService drives one phone call through the conversation state
// machine. Every method is safe to call concurrently; intents for the same
// call are serialized internally.
type SessionService interface {
	// StartSession creates a fresh session and returns the opening directive.
	StartSession(ctx context.Context) (*models.CallSession, *models.SpokenResponseDirective, error)
	// HandleIntent advances the conversation by one caller turn.
	HandleIntent(ctx context.Context, callID string, req models.IntentRequest) (*models.SpokenResponseDirective, error)
	// EndSession tears a session down, releasing any held slot.
	EndSession(ctx context.Context, callID string) error
}
