package models

import "time"

// PatientIdentity carries the attributes used to match a caller against the
// patient datastore.
type PatientIdentity struct {
	FirstName   string `json:"firstName" bson:"firstName"`
	LastName    string `json:"lastName" bson:"lastName"`
	DateOfBirth string `json:"dateOfBirth" bson:"dateOfBirth"` // YYYY-MM-DD
	Phone       string `json:"phone,omitempty" bson:"phone,omitempty"`
}

// PatientRecord is a patient as stored in the datastore.
type PatientRecord struct {
	ID          string          `json:"id" bson:"id"`
	Identity    PatientIdentity `json:"identity" bson:"identity"`
	Email       string          `json:"email,omitempty" bson:"email,omitempty"`
	IsNew       bool            `json:"isNew" bson:"-"`
	CreatedAt   time.Time       `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}
