package model

import "fmt"

// DaySchedule is one weekday entry of a WeeklySchedule.
type DaySchedule struct {
	IsActive bool      `json:"is_active"`
	Start    TimeOfDay `json:"start"`
	End      TimeOfDay `json:"end"`
}

// Window returns the open interval of the day and whether the day is usable.
// Inactive days and days with End <= Start have no window.
func (d DaySchedule) Window() (Interval, bool) {
	if !d.IsActive {
		return Interval{}, false
	}
	w := Interval{Start: d.Start, End: d.End}
	if w.Empty() {
		return Interval{}, false
	}
	return w, true
}

// WeeklySchedule holds salon opening hours or staff working hours, indexed by Weekday.
type WeeklySchedule [DaysPerWeek]DaySchedule

// Day returns the entry for w.
func (s *WeeklySchedule) Day(w Weekday) DaySchedule {
	return s[w]
}

// Set replaces the entry for w.
func (s *WeeklySchedule) Set(w Weekday, d DaySchedule) {
	s[w] = d
}

// Uniform builds a schedule with the same hours on the given days and every other day inactive.
func Uniform(start, end TimeOfDay, days ...Weekday) WeeklySchedule {
	var s WeeklySchedule
	for _, d := range days {
		s[d] = DaySchedule{IsActive: true, Start: start, End: end}
	}
	return s
}

// Weekdays lists Monday through Friday.
func Weekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}
}

// AllDays lists the whole week starting on Monday.
func AllDays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// Validate checks that active days have a valid, non-empty range.
func (s *WeeklySchedule) Validate() error {
	for i, d := range s {
		if !d.IsActive {
			continue
		}
		if !d.Start.Valid() || !d.End.Valid() {
			return fmt.Errorf("%w: %s hours out of range", ErrInvalidInput, Weekday(i))
		}
		if d.End <= d.Start {
			return fmt.Errorf("%w: %s end %s must be after start %s", ErrInvalidInput, Weekday(i), d.End, d.Start)
		}
	}
	return nil
}
