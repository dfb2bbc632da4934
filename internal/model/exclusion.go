package model

// Scope tells whether an exclusion belongs to the whole salon or to a single staff member.
type Scope string

const (
	ScopeSalon Scope = "salon"
	ScopeStaff Scope = "staff"
)

// Recurrence decides on which dates a break applies. It is implemented by Weekly and OnDate only.
type Recurrence interface {
	AppliesOn(date Date) bool
	recurrence()
}

// Weekly repeats every week on Day.
type Weekly struct {
	Day Weekday
}

// AppliesOn reports whether date falls on the recurring weekday.
func (w Weekly) AppliesOn(date Date) bool { return date.Weekday() == w.Day }

func (Weekly) recurrence() {}

// OnDate is pinned to a single calendar date.
type OnDate struct {
	Date Date
}

// AppliesOn reports whether date is the pinned date.
func (o OnDate) AppliesOn(date Date) bool { return date == o.Date }

func (OnDate) recurrence() {}

// Break is a partial-day exclusion, e.g. a lunch break or a one-off appointment outside the system.
type Break struct {
	ID         int64
	Scope      Scope
	Recurrence Recurrence
	Start      TimeOfDay
	End        TimeOfDay
	Active     bool
	Reason     string
}

// Window returns the blocked interval. Breaks with Start >= End are not usable.
func (b Break) Window() (Interval, bool) {
	w := Interval{Start: b.Start, End: b.End}
	if w.Empty() {
		return Interval{}, false
	}
	return w, true
}

// Vacation is a whole-day exclusion covering From..To inclusive.
type Vacation struct {
	ID     int64
	Scope  Scope
	From   Date
	To     Date
	Active bool
	Reason string
}

// Covers reports whether date lies in [From, To]. Inverted ranges cover nothing.
func (v Vacation) Covers(date Date) bool {
	if v.To.Before(v.From) {
		return false
	}
	return !date.Before(v.From) && !date.After(v.To)
}

// Exclusions groups the breaks and vacations of one owner (a salon or a staff member).
type Exclusions struct {
	Breaks    []Break
	Vacations []Vacation
}
