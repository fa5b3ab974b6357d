package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	// Statements resolve dates in an IANA zone; embed the database so the
	// binary does not depend on the host.
	_ "time/tzdata"
)

// DefaultTimeZone is the zone Australian statements are printed in.
const DefaultTimeZone = "Australia/Sydney"

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July, "aug": time.August,
	"sep": time.September, "sept": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

// slashDate matches dd/mm/yyyy or dd/mm/yy at the start of a token.
var slashDate = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})`)

// MonthNumber resolves a three or four letter month abbreviation.
func MonthNumber(name string) (time.Month, error) {
	m, ok := monthNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMonthName, name)
	}
	return m, nil
}

// MakeDate returns local midnight of the given day in loc.
func MakeDate(day string, month time.Month, year int, loc *time.Location) (time.Time, error) {
	d, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q", ErrMalformedDate, day)
	}
	if loc == nil {
		loc = defaultLocation()
	}
	t := time.Date(year, month, d, 0, 0, 0, 0, loc)
	if t.Day() != d || t.Month() != month {
		return time.Time{}, fmt.Errorf("%w: %d %s %d", ErrMalformedDate, d, month, year)
	}
	return t, nil
}

// ParseSlashDate decodes dd/mm/yyyy. Two digit years are taken as 20yy.
func ParseSlashDate(s string, loc *time.Location) (time.Time, error) {
	m := slashDate.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}
	return MakeDate(m[1], time.Month(month), year, loc)
}

// YearClock tracks the implicit year of rows that only print day and month.
// It is a fold value: Advance returns the next state and never mutates.
type YearClock struct {
	Year  int
	Month time.Month
}

// Advance moves the clock to month, rolling the year over when the month
// goes backwards (December to January).
func (c YearClock) Advance(month time.Month) YearClock {
	if month < c.Month {
		c.Year++
	}
	c.Month = month
	return c
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimeZone)
	if err != nil {
		return time.FixedZone("AEST", 10*60*60)
	}
	return loc
}
