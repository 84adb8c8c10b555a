package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday 2026-09-09 in Paris.
func wednesday(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return time.Date(2026, 9, 9, 15, 30, 0, 0, loc)
}

func TestParseFrenchDateRelative(t *testing.T) {
	now := wednesday(t)

	cases := []struct {
		expr string
		want time.Time
	}{
		{"aujourd'hui", time.Date(2026, 9, 9, 0, 0, 0, 0, now.Location())},
		{"demain", time.Date(2026, 9, 10, 0, 0, 0, 0, now.Location())},
		{"après-demain", time.Date(2026, 9, 11, 0, 0, 0, 0, now.Location())},
		{"apres demain", time.Date(2026, 9, 11, 0, 0, 0, 0, now.Location())},
		{"dans une semaine", time.Date(2026, 9, 16, 0, 0, 0, 0, now.Location())},
		{"dans 3 jours", time.Date(2026, 9, 12, 0, 0, 0, 0, now.Location())},
		{"vendredi", time.Date(2026, 9, 11, 0, 0, 0, 0, now.Location())},
		{"lundi", time.Date(2026, 9, 14, 0, 0, 0, 0, now.Location())},
		{"lundi prochain", time.Date(2026, 9, 14, 0, 0, 0, 0, now.Location())},
		// Same weekday as today means next week, never today.
		{"mercredi", time.Date(2026, 9, 16, 0, 0, 0, 0, now.Location())},
		{"14/09", time.Date(2026, 9, 14, 0, 0, 0, 0, now.Location())},
		{"14/09/2026", time.Date(2026, 9, 14, 0, 0, 0, 0, now.Location())},
		// A passed day/month without year rolls to next year.
		{"02/01", time.Date(2027, 1, 2, 0, 0, 0, 0, now.Location())},
		{"2026-09-14", time.Date(2026, 9, 14, 0, 0, 0, 0, now.Location())},
	}
	for _, tc := range cases {
		got, err := ParseFrenchDate(tc.expr, now)
		require.NoError(t, err, tc.expr)
		assert.True(t, got.Equal(tc.want), "%s: got %s want %s", tc.expr, got, tc.want)
	}
}

func TestParseFrenchDateRejectsGarbage(t *testing.T) {
	now := wednesday(t)
	for _, expr := range []string{"", "bientôt", "le matin", "99/99"} {
		_, err := ParseFrenchDate(expr, now)
		assert.Error(t, err, expr)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		expr         string
		hour, minute int
	}{
		{"14h30", 14, 30},
		{"14h", 14, 0},
		{"14:30", 14, 30},
		{"9h05", 9, 5},
		{"9 h 15", 9, 15},
	}
	for _, tc := range cases {
		h, m, err := ParseTimeOfDay(tc.expr)
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.hour, h, tc.expr)
		assert.Equal(t, tc.minute, m, tc.expr)
	}

	for _, expr := range []string{"", "midi", "25h00", "14h61"} {
		_, _, err := ParseTimeOfDay(expr)
		assert.Error(t, err, expr)
	}
}

func TestFormatFrench(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Paris")
	d := time.Date(2026, 9, 14, 14, 30, 0, 0, loc)
	assert.Equal(t, "lundi 14 septembre", FormatDateFR(d))
	assert.Equal(t, "14h30", FormatTimeFR(d))
	assert.Equal(t, "9h", FormatTimeFR(time.Date(2026, 9, 14, 9, 0, 0, 0, loc)))
}

func TestNextWorkday(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Paris")
	saturday := time.Date(2026, 9, 12, 0, 0, 0, 0, loc)
	sunday := saturday.AddDate(0, 0, 1)
	monday := saturday.AddDate(0, 0, 2)

	assert.True(t, NextWorkday(saturday).Equal(monday))
	assert.True(t, NextWorkday(sunday).Equal(monday))
	assert.True(t, NextWorkday(monday).Equal(monday))
}
