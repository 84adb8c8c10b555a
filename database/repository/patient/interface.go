package patientRepo

import "clinicvoice/models"

// PatientRepository defines data access methods for patient records.
type PatientRepository interface {
	Create(patient *models.PatientRecord) error
	Update(patient *models.PatientRecord) error
	GetByID(id string) (*models.PatientRecord, error)
	// FindByDOB returns every record sharing the given date of birth. Name
	// matching happens above the repository so the fuzzy rules stay in one
	// place.
	FindByDOB(dob string) ([]models.PatientRecord, error)
	FindByPhone(phone string) (*models.PatientRecord, error)
}
