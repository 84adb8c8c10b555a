package directory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"clinicvoice/models"
	"clinicvoice/services/calendar"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePractitionerRepo struct {
	practitioners []models.Practitioner
	fail          bool
	loads         int
}

func (f *fakePractitionerRepo) Create(p *models.Practitioner) error { return nil }
func (f *fakePractitionerRepo) Update(p *models.Practitioner) error { return nil }
func (f *fakePractitionerRepo) Delete(id string) error              { return nil }
func (f *fakePractitionerRepo) GetByID(id string) (*models.Practitioner, error) {
	return nil, nil
}

func (f *fakePractitionerRepo) GetAllActive() ([]models.Practitioner, error) {
	f.loads++
	if f.fail {
		return nil, fmt.Errorf("mongo down")
	}
	return append([]models.Practitioner{}, f.practitioners...), nil
}

type calendarLister struct {
	refs []string
}

func (c *calendarLister) FreeBusy(ctx context.Context, ref string, from, to time.Time) ([]models.BusyInterval, error) {
	return nil, nil
}
func (c *calendarLister) CreateProvisionalEvent(ctx context.Context, ref string, slot models.Slot, summary, description string) (string, error) {
	return "", nil
}
func (c *calendarLister) ConfirmEvent(ctx context.Context, ref, eventID string) error { return nil }
func (c *calendarLister) DeleteEvent(ctx context.Context, ref, eventID string) error  { return nil }
func (c *calendarLister) ListEvents(ctx context.Context, ref string, from, to time.Time) ([]calendar.Event, error) {
	return nil, nil
}
func (c *calendarLister) ListCalendars(ctx context.Context) ([]calendar.Info, error) {
	infos := make([]calendar.Info, 0, len(c.refs))
	for _, r := range c.refs {
		infos = append(infos, calendar.Info{Ref: r})
	}
	return infos, nil
}

func roster() []models.Practitioner {
	return []models.Practitioner{
		{ID: "dr-a", Name: "Dr Anne Aubert", Specialties: []string{"dermatologie"}, CalendarRef: "cal-a", Active: true},
		{ID: "dr-b", Name: "Dr Bernard Blanc", Specialties: []string{"dermatologie", "generaliste"}, CalendarRef: "cal-b", Active: true},
		{ID: "dr-c", Name: "Dr Claire Costa", Specialties: []string{"cardiologie"}, CalendarRef: "cal-c", Active: true},
	}
}

func TestFindBySpecialty(t *testing.T) {
	repo := &fakePractitionerRepo{practitioners: roster()}
	svc := NewDirectoryService(repo, &calendarLister{refs: []string{"cal-a", "cal-b", "cal-c"}})

	matches, err := svc.FindBySpecialty(context.Background(), "dermatologie")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// Roster order is preserved.
	assert.Equal(t, "dr-a", matches[0].ID)
	assert.Equal(t, "dr-b", matches[1].ID)

	matches, err = svc.FindBySpecialty(context.Background(), "Cardiologie")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "dr-c", matches[0].ID)
}

func TestFindBySpecialtyNotFound(t *testing.T) {
	repo := &fakePractitionerRepo{practitioners: roster()}
	svc := NewDirectoryService(repo, nil)

	_, err := svc.FindBySpecialty(context.Background(), "neurologie")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByID(t *testing.T) {
	repo := &fakePractitionerRepo{practitioners: roster()}
	svc := NewDirectoryService(repo, nil)

	p, err := svc.GetByID(context.Background(), "dr-b")
	require.NoError(t, err)
	assert.Equal(t, "Dr Bernard Blanc", p.Name)

	_, err = svc.GetByID(context.Background(), "dr-z")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupsServeSnapshot(t *testing.T) {
	repo := &fakePractitionerRepo{practitioners: roster()}
	svc := NewDirectoryService(repo, nil)

	_, err := svc.All(context.Background())
	require.NoError(t, err)
	_, err = svc.GetByID(context.Background(), "dr-a")
	require.NoError(t, err)
	_, err = svc.FindBySpecialty(context.Background(), "cardiologie")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.loads, "reads after the first load must hit the snapshot")
}

func TestRefreshReloads(t *testing.T) {
	repo := &fakePractitionerRepo{practitioners: roster()}
	svc := NewDirectoryService(repo, nil)

	all, err := svc.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)

	repo.practitioners = roster()[:1]
	require.NoError(t, svc.Refresh(context.Background()))

	all, err = svc.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLoadFailureIsUnavailable(t *testing.T) {
	repo := &fakePractitionerRepo{fail: true}
	svc := NewDirectoryService(repo, nil)

	_, err := svc.All(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	// Recovery: the next refresh after the backend returns succeeds.
	repo.fail = false
	repo.practitioners = roster()
	all, err := svc.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
