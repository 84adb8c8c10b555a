package practitionerRepo

import "clinicvoice/models"

// PractitionerRepository defines data access methods for practitioners.
type PractitionerRepository interface {
	Create(practitioner *models.Practitioner) error
	Update(practitioner *models.Practitioner) error
	Delete(id string) error
	GetByID(id string) (*models.Practitioner, error)
	GetAllActive() ([]models.Practitioner, error)
}
