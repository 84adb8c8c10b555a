package scheduling

import (
	"context"
	"testing"
	"time"

	"clinicvoice/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parisHours(t *testing.T) ClinicHours {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return ClinicHours{OpenHour: 9, CloseHour: 17, SlotMinutes: 30, Location: loc}
}

func TestBuildCandidateSlotsFullDay(t *testing.T) {
	hours := parisHours(t)
	dayStart := time.Date(2026, 9, 7, 0, 0, 0, 0, hours.Location)
	now := dayStart.Add(-12 * time.Hour)

	slots := BuildCandidateSlots("p1", dayStart, nil, hours, now)

	// 9h to 17h in 30 minute steps is 16 slots.
	require.Len(t, slots, 16)
	assert.Equal(t, 9, slots[0].Start.Hour())
	last := slots[len(slots)-1]
	assert.Equal(t, 16, last.Start.Hour())
	assert.Equal(t, 30, last.Start.Minute())
	assert.Equal(t, 17, last.End.Hour())
}

func TestBuildCandidateSlotsExcludesBusy(t *testing.T) {
	hours := parisHours(t)
	dayStart := time.Date(2026, 9, 7, 0, 0, 0, 0, hours.Location)
	now := dayStart.Add(-12 * time.Hour)

	busy := []models.BusyInterval{
		{Start: dayStart.Add(10 * time.Hour), End: dayStart.Add(10*time.Hour + 30*time.Minute)},
		// An interval straddling two slots blocks both.
		{Start: dayStart.Add(14*time.Hour + 15*time.Minute), End: dayStart.Add(14*time.Hour + 45*time.Minute)},
	}
	slots := BuildCandidateSlots("p1", dayStart, busy, hours, now)

	require.Len(t, slots, 13)
	for _, s := range slots {
		assert.NotEqual(t, 10, s.Start.Hour(), "10h00 is busy")
		if s.Start.Hour() == 14 {
			t.Errorf("slot at %s overlaps straddling busy interval", s.Start)
		}
	}
}

func TestBuildCandidateSlotsExcludesPast(t *testing.T) {
	hours := parisHours(t)
	dayStart := time.Date(2026, 9, 7, 0, 0, 0, 0, hours.Location)
	// Midday: every slot up to and including 12h00 has started.
	now := dayStart.Add(12 * time.Hour)

	slots := BuildCandidateSlots("p1", dayStart, nil, hours, now)

	require.NotEmpty(t, slots)
	assert.Equal(t, 12, slots[0].Start.Hour())
	assert.Equal(t, 30, slots[0].Start.Minute())
}

func TestFreeBusyRetriesTransientFailures(t *testing.T) {
	cal := newFakeCalendar()
	cal.failFree = 2
	resolver := &DefaultAvailabilityResolver{
		Calendar: cal,
		Hours:    parisHours(t),
		Retries:  3,
		Backoff:  time.Millisecond,
	}

	busy, err := resolver.FreeBusy(context.Background(), "cal-test", time.Now(), time.Now().Add(24*time.Hour))
	require.NoError(t, err, "third attempt should succeed")
	assert.Empty(t, busy)
}

func TestFreeBusyExhaustedRetriesIsUnavailable(t *testing.T) {
	cal := newFakeCalendar()
	cal.failFree = 10
	resolver := &DefaultAvailabilityResolver{
		Calendar: cal,
		Hours:    parisHours(t),
		Retries:  3,
		Backoff:  time.Millisecond,
	}

	_, err := resolver.FreeBusy(context.Background(), "cal-test", time.Now(), time.Now().Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrUnavailable)
}
