package reconcile

import (
	"context"
	"fmt"
	"strings"

	"clinicvoice/database/repository/patient"
	"clinicvoice/models"
	"clinicvoice/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultReconcileService matches on normalized name plus exact date of
// birth. Normalization folds case, surrounding whitespace and French
// diacritics so "Hélène" spoken and "Helene" stored still match.
type DefaultReconcileService struct {
	Repo patientRepo.PatientRepository
}

// NewReconcileService creates a reconciler over the given repository.
func NewReconcileService(repo patientRepo.PatientRepository) *DefaultReconcileService {
	return &DefaultReconcileService{Repo: repo}
}

// FindMatches returns the records whose normalized name and date of birth
// equal the given identity's.
func (s *DefaultReconcileService) FindMatches(ctx context.Context, identity models.PatientIdentity) ([]models.PatientRecord, error) {
	if identity.DateOfBirth == "" {
		return nil, fmt.Errorf("date of birth is required for matching")
	}

	candidates, err := s.Repo.FindByDOB(identity.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients by date of birth: %w", err)
	}

	first := normalizeName(identity.FirstName)
	last := normalizeName(identity.LastName)

	var matches []models.PatientRecord
	for _, rec := range candidates {
		if normalizeName(rec.Identity.FirstName) == first && normalizeName(rec.Identity.LastName) == last {
			matches = append(matches, rec)
		}
	}
	return matches, nil
}

// Resolve links the identity to exactly one record, creating a new one when
// nobody matches.
func (s *DefaultReconcileService) Resolve(ctx context.Context, identity models.PatientIdentity) (*models.PatientRecord, error) {
	matches, err := s.FindMatches(ctx, identity)
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return s.createPatient(identity)
	case 1:
		rec := matches[0]
		rec.IsNew = false
		return &rec, nil
	default:
		utils.GetLogger().Info("ambiguous patient identity",
			zap.String("dob", identity.DateOfBirth), zap.Int("matches", len(matches)))
		return nil, ErrAmbiguous
	}
}

// Disambiguate narrows an ambiguous match set by phone number. If the phone
// still does not single out one record, ErrAmbiguous stands.
func (s *DefaultReconcileService) Disambiguate(ctx context.Context, identity models.PatientIdentity, phone string) (*models.PatientRecord, error) {
	// An exact phone hit settles it without scanning the match set, as long
	// as the record agrees with the claimed identity.
	if rec, err := s.Repo.FindByPhone(phone); err == nil && rec != nil {
		if normalizeName(rec.Identity.FirstName) == normalizeName(identity.FirstName) &&
			normalizeName(rec.Identity.LastName) == normalizeName(identity.LastName) &&
			rec.Identity.DateOfBirth == identity.DateOfBirth {
			out := *rec
			out.IsNew = false
			return &out, nil
		}
	}

	matches, err := s.FindMatches(ctx, identity)
	if err != nil {
		return nil, err
	}

	want := normalizePhone(phone)
	var narrowed []models.PatientRecord
	for _, rec := range matches {
		if normalizePhone(rec.Identity.Phone) == want {
			narrowed = append(narrowed, rec)
		}
	}

	if len(narrowed) == 1 {
		rec := narrowed[0]
		rec.IsNew = false
		return &rec, nil
	}
	if len(narrowed) == 0 && len(matches) > 0 {
		// The phone matched no record; treat the caller as new rather than
		// guessing among existing ones.
		identity.Phone = phone
		return s.createPatient(identity)
	}
	return nil, ErrAmbiguous
}

// UpdatePatient persists corrections to an existing record.
func (s *DefaultReconcileService) UpdatePatient(ctx context.Context, record *models.PatientRecord) error {
	if record == nil || record.ID == "" {
		return ErrNotFound
	}
	existing, err := s.Repo.GetByID(record.ID)
	if err != nil {
		return fmt.Errorf("failed to load patient %s: %w", record.ID, err)
	}
	if existing == nil {
		return ErrNotFound
	}
	if err := s.Repo.Update(record); err != nil {
		return fmt.Errorf("failed to update patient %s: %w", record.ID, err)
	}
	return nil
}

func (s *DefaultReconcileService) createPatient(identity models.PatientIdentity) (*models.PatientRecord, error) {
	rec := &models.PatientRecord{
		ID:       uuid.NewString(),
		Identity: identity,
		IsNew:    true,
	}
	if err := s.Repo.Create(rec); err != nil {
		return nil, fmt.Errorf("failed to create patient record: %w", err)
	}
	utils.GetLogger().Info("created new patient record", zap.String("patientID", rec.ID))
	return rec, nil
}

var diacriticFold = strings.NewReplacer(
	"à", "a", "â", "a", "ä", "a",
	"ç", "c",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i",
	"ô", "o", "ö", "o",
	"ù", "u", "û", "u", "ü", "u",
	"œ", "oe", "æ", "ae",
	"-", " ", "'", " ",
)

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = diacriticFold.Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	// French numbers: fold the +33 prefix onto the national leading zero.
	if strings.HasPrefix(digits, "33") && len(digits) == 11 {
		digits = "0" + digits[2:]
	}
	return digits
}
