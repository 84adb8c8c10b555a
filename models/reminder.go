package models

import "time"

// ReminderPayload is the queued follow-up for a confirmed booking.
type ReminderPayload struct {
	PatientID        string    `json:"patientId"`
	PatientName      string    `json:"patientName"`
	Phone            string    `json:"phone,omitempty"`
	PractitionerID   string    `json:"practitionerId"`
	PractitionerName string    `json:"practitionerName"`
	CalendarRef      string    `json:"calendarRef"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
}
