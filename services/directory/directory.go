package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"clinicvoice/database/repository/practitioner"
	"clinicvoice/models"
	"clinicvoice/services/calendar"
	"clinicvoice/utils"

	"go.uber.org/zap"
)

// DefaultDirectoryService serves practitioner lookups from a snapshot loaded
// on first use. A failed load is not fatal to the process; lookups report
// ErrUnavailable until a refresh succeeds.
type DefaultDirectoryService struct {
	Repo     practitionerRepo.PractitionerRepository
	Calendar calendar.API

	mu       sync.RWMutex
	snapshot []models.Practitioner
	loaded   bool
}

// NewDirectoryService creates a directory over the given repository. The
// calendar client is optional; when present, Refresh cross-checks each
// practitioner's calendar ref against the calendars the service account sees.
func NewDirectoryService(repo practitionerRepo.PractitionerRepository, cal calendar.API) *DefaultDirectoryService {
	return &DefaultDirectoryService{Repo: repo, Calendar: cal}
}

func (s *DefaultDirectoryService) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Refresh(ctx)
}

// FindBySpecialty returns the active practitioners covering the specialty.
func (s *DefaultDirectoryService) FindBySpecialty(ctx context.Context, specialty string) ([]models.Practitioner, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	want := strings.ToLower(strings.TrimSpace(specialty))
	var matches []models.Practitioner
	for _, p := range s.snapshot {
		if p.HasSpecialty(want) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return matches, nil
}

// GetByID returns a practitioner from the snapshot.
func (s *DefaultDirectoryService) GetByID(ctx context.Context, id string) (*models.Practitioner, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.snapshot {
		if s.snapshot[i].ID == id {
			p := s.snapshot[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

// All returns every active practitioner in roster order.
func (s *DefaultDirectoryService) All(ctx context.Context) ([]models.Practitioner, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Practitioner, len(s.snapshot))
	copy(out, s.snapshot)
	return out, nil
}

// Refresh reloads the roster from storage. When a calendar client is wired,
// practitioners whose calendar ref is not visible to the service account are
// logged; they stay in the roster so admins can fix the ref without an outage.
func (s *DefaultDirectoryService) Refresh(ctx context.Context) error {
	logger := utils.GetLogger()

	practitioners, err := s.Repo.GetAllActive()
	if err != nil {
		logger.Error("failed to load practitioner roster", zap.Error(err))
		return fmt.Errorf("failed to load roster: %w", ErrUnavailable)
	}

	if s.Calendar != nil {
		if infos, calErr := s.Calendar.ListCalendars(ctx); calErr != nil {
			logger.Warn("calendar reconciliation skipped", zap.Error(calErr))
		} else {
			known := make(map[string]bool, len(infos))
			for _, info := range infos {
				known[info.Ref] = true
			}
			for _, p := range practitioners {
				if !known[p.CalendarRef] {
					logger.Warn("practitioner calendar not visible to service account",
						zap.String("practitionerID", p.ID),
						zap.String("calendarRef", p.CalendarRef))
				}
			}
		}
	}

	s.mu.Lock()
	s.snapshot = practitioners
	s.loaded = true
	s.mu.Unlock()

	logger.Info("practitioner roster refreshed", zap.Int("count", len(practitioners)))
	return nil
}
