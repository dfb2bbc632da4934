package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the ISO layout used on the wire and in storage.
	DateLayout = "2006-01-02"
	// LocalDateLayout is the DD.MM.YYYY layout used by salon staff.
	LocalDateLayout = "02.01.2006"
)

// Weekday indexes WeeklySchedule. Monday is the first day of the week.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DaysPerWeek is the number of entries in a WeeklySchedule.
const DaysPerWeek = 7

var weekdayNames = [DaysPerWeek]string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// WeekdayOf converts Go's Sunday-first weekday.
func WeekdayOf(d time.Weekday) Weekday {
	if d == time.Sunday {
		return Sunday
	}
	return Weekday(d - 1)
}

// WeekdayFromISO converts the 1=Mon..7=Sun numbering used in storage and config.
func WeekdayFromISO(n int) (Weekday, error) {
	if n < 1 || n > 7 {
		return 0, fmt.Errorf("%w: day of week %d, must be 1-7 (1=Mon, 7=Sun)", ErrInvalidInput, n)
	}
	return Weekday(n - 1), nil
}

// ParseWeekday accepts an English day name ("monday", "Mon").
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range weekdayNames {
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidInput, s)
}

// ISO returns the 1=Mon..7=Sun number.
func (w Weekday) ISO() int { return int(w) + 1 }

// Valid reports whether w is one of the seven days.
func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

// Date is a calendar date without time or zone. Dates are comparable with ==.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes the given components (so 2026-01-32 becomes 2026-02-01).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate accepts both YYYY-MM-DD and DD.MM.YYYY. Anything else is ErrInvalidInput.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	layout := DateLayout
	if strings.Contains(s, ".") {
		layout = LocalDateLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD or DD.MM.YYYY", ErrInvalidInput, s)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At returns the instant of t on d in loc.
func (d Date) At(t TimeOfDay, loc *time.Location) time.Time {
	return d.Time(loc).Add(time.Duration(t) * time.Minute)
}

// Weekday returns the day of week of d.
func (d Date) Weekday() Weekday {
	return WeekdayOf(d.Time(time.UTC).Weekday())
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d.Time(time.UTC).Before(o.Time(time.UTC))
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool {
	return o.Before(d)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}
