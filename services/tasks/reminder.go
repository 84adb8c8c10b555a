package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"clinicvoice/models"

	"github.com/hibiken/asynq"
)

// Task type names shared between the enqueuing side and the worker.
const (
	TypeSendReminder     = "reminder:send"
	TypeHoldSweep        = "holds:sweep"
	TypeDirectoryRefresh = "directory:refresh"
)

// reminderLeadTime is how long before the appointment the reminder fires.
const reminderLeadTime = 24 * time.Hour

// NewReminderTask builds the queued reminder for one booking.
func NewReminderTask(payload models.ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendReminder, b)
	opts := []asynq.Option{asynq.ProcessAt(fireAt)}

	return task, opts, nil
}

// Client enqueues booking follow-ups. Implements the orchestrator's reminder
// dependency.
type Client struct {
	asynq *asynq.Client
}

// NewClient wraps an asynq client.
func NewClient(c *asynq.Client) *Client {
	return &Client{asynq: c}
}

// EnqueueBookingReminder schedules the reminder a day before the
// appointment. Bookings closer than the lead time get no reminder.
func (c *Client) EnqueueBookingReminder(ctx context.Context, patient models.PatientRecord, practitioner models.Practitioner, slot models.Slot) error {
	fireAt := slot.Start.Add(-reminderLeadTime)
	if !fireAt.After(time.Now()) {
		return nil
	}

	payload := models.ReminderPayload{
		PatientID:        patient.ID,
		PatientName:      patient.Identity.FirstName + " " + patient.Identity.LastName,
		Phone:            patient.Identity.Phone,
		PractitionerID:   practitioner.ID,
		PractitionerName: practitioner.Name,
		CalendarRef:      practitioner.CalendarRef,
		Start:            slot.Start,
		End:              slot.End,
	}
	task, opts, err := NewReminderTask(payload, fireAt)
	if err != nil {
		return fmt.Errorf("failed to build reminder task: %w", err)
	}
	if _, err := c.asynq.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue reminder: %w", err)
	}
	return nil
}
