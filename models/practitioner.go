package models

import (
	"strings"
	"time"
)

// Practitioner is a bookable clinician. Each practitioner is bound to exactly
// one calendar resource on the external calendar service.
type Practitioner struct {
	ID          string    `json:"id" bson:"id"`
	Name        string    `json:"name" bson:"name"`
	Specialties []string  `json:"specialties" bson:"specialties"`
	CalendarRef string    `json:"calendarRef" bson:"calendarRef"`
	Active      bool      `json:"active" bson:"active"`
	CreatedAt   time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// HasSpecialty reports whether the practitioner covers the given need category.
func (p Practitioner) HasSpecialty(category string) bool {
	for _, s := range p.Specialties {
		if strings.EqualFold(s, category) {
			return true
		}
	}
	return false
}
