package utils

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the dd-mm-yyyy form entry dates are stored in.
	DateLayout = "02-01-2006"
	// ISODateLayout is used for settings dates and holiday dates.
	ISODateLayout = "2006-01-02"
)

// LoadLocation resolves a market time zone, falling back to a fixed IST
// offset when the zoneinfo database is missing from the host.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func TodayISO(loc *time.Location) string {
	return time.Now().In(loc).Format(ISODateLayout)
}

var whitespace = regexp.MustCompile(`\s+`)

// ParseLooseDate reads a day-first date typed by a user. Accepted forms are
// dd-mm-yyyy, dd/mm/yyyy (two-digit years are 20xx), ddmmyyyy and ddmmyy.
// Whitespace anywhere is ignored.
func ParseLooseDate(input string, loc *time.Location) (time.Time, bool) {
	cleaned := whitespace.ReplaceAllString(input, "")
	if cleaned == "" {
		return time.Time{}, false
	}

	var day, month, year int
	switch {
	case strings.ContainsAny(cleaned, "-/"):
		parts := strings.FieldsFunc(cleaned, func(r rune) bool { return r == '-' || r == '/' })
		if len(parts) != 3 {
			return time.Time{}, false
		}
		day, _ = strconv.Atoi(parts[0])
		month, _ = strconv.Atoi(parts[1])
		year, _ = strconv.Atoi(parts[2])
		if year > 0 && year < 100 {
			year += 2000
		}
	case len(cleaned) == 8:
		day, _ = strconv.Atoi(cleaned[0:2])
		month, _ = strconv.Atoi(cleaned[2:4])
		year, _ = strconv.Atoi(cleaned[4:8])
	case len(cleaned) == 6:
		day, _ = strconv.Atoi(cleaned[0:2])
		month, _ = strconv.Atoi(cleaned[2:4])
		year, _ = strconv.Atoi(cleaned[4:6])
		if year > 0 {
			year += 2000
		}
	}

	if day <= 0 || month <= 0 || month > 12 || year <= 0 {
		return time.Time{}, false
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// time.Date normalizes 31-02 into March; reject that instead.
	if date.Day() != day || int(date.Month()) != month {
		return time.Time{}, false
	}
	return date, true
}

// DaysBetween returns whole days from start to end, rounded down. Any end
// before start is negative.
func DaysBetween(start, end time.Time) int {
	return int(math.Floor(end.Sub(start).Hours() / 24))
}
