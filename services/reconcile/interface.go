package reconcile

import (
	"context"
	"errors"

	"clinicvoice/models"
)

// Sentinel errors for patient reconciliation.
var (
	// ErrAmbiguous means more than one record matched and the caller must
	// gather a disambiguating attribute before retrying.
	ErrAmbiguous = errors.New("reconcile: multiple matching patients")
	// ErrNotFound means the referenced patient record does not exist.
	ErrNotFound = errors.New("reconcile: patient not found")
)

// Service links a caller's spoken identity to a patient record. Matching
// never creates a booking by itself; the orchestrator decides what to do with
// zero, one or many matches.
type Service interface {
	// FindMatches returns every record matching the identity. Zero matches is
	// a valid outcome, not an error.
	FindMatches(ctx context.Context, identity models.PatientIdentity) ([]models.PatientRecord, error)
	// Resolve applies the match policy: one match returns that record, zero
	// matches creates a new record flagged IsNew, several return ErrAmbiguous.
	Resolve(ctx context.Context, identity models.PatientIdentity) (*models.PatientRecord, error)
	// Disambiguate retries a previously ambiguous identity with a phone
	// number as tie-breaker.
	Disambiguate(ctx context.Context, identity models.PatientIdentity, phone string) (*models.PatientRecord, error)
	// UpdatePatient persists corrections to an existing record.
	UpdatePatient(ctx context.Context, record *models.PatientRecord) error
}
