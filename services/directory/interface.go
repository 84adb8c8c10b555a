package directory

import (
	"context"
	"errors"

	"clinicvoice/models"
)

// Sentinel errors for directory lookups.
var (
	// ErrNotFound means no practitioner matches the query.
	ErrNotFound = errors.New("directory: practitioner not found")
	// ErrUnavailable means the directory could not be loaded. Callers keep
	// the conversation alive and tell the caller practitioner info is
	// temporarily unavailable.
	ErrUnavailable = errors.New("directory: unavailable")
)

// Service exposes the practitioner roster. Reads hit an in-memory snapshot;
// Refresh reloads it from storage.
type Service interface {
	// FindBySpecialty returns active practitioners covering the specialty, in
	// roster order.
	FindBySpecialty(ctx context.Context, specialty string) ([]models.Practitioner, error)
	// GetByID returns one practitioner. ErrNotFound when unknown or inactive.
	GetByID(ctx context.Context, id string) (*models.Practitioner, error)
	// All returns every active practitioner.
	All(ctx context.Context) ([]models.Practitioner, error)
	// Refresh reloads the snapshot from storage and reconciles calendar refs.
	Refresh(ctx context.Context) error
}
