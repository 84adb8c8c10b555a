package orchestrator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var frenchWeekdays = map[string]time.Weekday{
	"lundi":    time.Monday,
	"mardi":    time.Tuesday,
	"mercredi": time.Wednesday,
	"jeudi":    time.Thursday,
	"vendredi": time.Friday,
	"samedi":   time.Saturday,
	"dimanche": time.Sunday,
}

var frenchWeekdayNames = [...]string{
	"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi",
}

var frenchMonthNames = [...]string{
	"", "janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

var numericDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{4}))?$`)
var isoDateRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
var timeOfDayRe = regexp.MustCompile(`^(\d{1,2})\s*(?:h|:)\s*(\d{2})?$`)

// ParseFrenchDate resolves a spoken French date expression relative to now.
// Supported forms: "aujourd'hui", "demain", "après-demain", weekday names
// ("lundi", always the next occurrence), "lundi prochain", "dans une
// semaine", "dans N jours", numeric "JJ/MM" or "JJ/MM/AAAA" and ISO
// "AAAA-MM-JJ". The result is midnight in now's location.
func ParseFrenchDate(expr string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	s = strings.ReplaceAll(s, "’", "'")
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch s {
	case "aujourd'hui", "aujourd hui", "aujourdhui":
		return today, nil
	case "demain":
		return today.AddDate(0, 0, 1), nil
	case "après-demain", "apres-demain", "après demain", "apres demain":
		return today.AddDate(0, 0, 2), nil
	case "dans une semaine", "la semaine prochaine":
		return today.AddDate(0, 0, 7), nil
	}

	if m := regexp.MustCompile(`^dans (\d+) jours?$`).FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, n), nil
	}

	// "lundi" or "lundi prochain": next occurrence of the weekday, never today.
	name := strings.TrimSuffix(s, " prochain")
	name = strings.TrimSuffix(name, " prochaine")
	if wd, ok := frenchWeekdays[name]; ok {
		delta := (int(wd) - int(today.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return today.AddDate(0, 0, delta), nil
	}

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location()), nil
	}

	if m := numericDateRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, fmt.Errorf("date %q out of range", expr)
		}
		year := today.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
		// A day/month without a year that already passed means next year.
		if m[3] == "" && d.Before(today) {
			d = d.AddDate(1, 0, 0)
		}
		return d, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date expression %q", expr)
}

// ParseTimeOfDay parses spoken clock times: "14h30", "14h", "14:30".
func ParseTimeOfDay(expr string) (hour, minute int, err error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	m := timeOfDayRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("unrecognized time expression %q", expr)
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q out of range", expr)
	}
	return hour, minute, nil
}

// FormatDateFR renders a date the way it would be spoken: "lundi 2 mars".
func FormatDateFR(t time.Time) string {
	return fmt.Sprintf("%s %d %s", frenchWeekdayNames[t.Weekday()], t.Day(), frenchMonthNames[t.Month()])
}

// FormatTimeFR renders a clock time the way it would be spoken: "14h30".
func FormatTimeFR(t time.Time) string {
	if t.Minute() == 0 {
		return fmt.Sprintf("%dh", t.Hour())
	}
	return fmt.Sprintf("%dh%02d", t.Hour(), t.Minute())
}

// NextWorkday returns day if it falls Monday through Friday, otherwise the
// following Monday.
func NextWorkday(day time.Time) time.Time {
	switch day.Weekday() {
	case time.Saturday:
		return day.AddDate(0, 0, 2)
	case time.Sunday:
		return day.AddDate(0, 0, 1)
	default:
		return day
	}
}
