package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
)

var (
	monday  = model.MustParseDate("2026-10-19")
	tuesday = monday.AddDays(1)
	sunday  = monday.AddDays(6)
)

func at(s string) model.TimeOfDay {
	return model.MustParseTimeOfDay(s)
}

func times(ss ...string) []model.TimeOfDay {
	out := make([]model.TimeOfDay, len(ss))
	for i, s := range ss {
		out[i] = at(s)
	}
	return out
}

func schedule(start, end string, days ...model.Weekday) *model.WeeklySchedule {
	s := model.Uniform(at(start), at(end), days...)
	return &s
}

// newDay builds the reference scenario: salon 08:00-20:00 every weekday, staff 09:00-17:00 Mon-Fri.
func newDay(date model.Date, bookings ...model.Booking) Day {
	return Day{
		Salon: &model.Salon{ID: 1, SlotStep: 30, Schedule: schedule("08:00", "20:00", model.Weekdays()...)},
		Staff: &model.Staff{
			ID: 7, SalonID: 1, IsActive: true, IsPublic: true, AcceptsBookings: true,
			Schedule: schedule("09:00", "17:00", model.Weekdays()...),
		},
		Date:     date,
		Bookings: bookings,
	}
}

func booking(start, end string, status model.BookingStatus) model.Booking {
	return model.Booking{StaffID: 7, Date: monday, Start: at(start), End: at(end), Status: status}
}

func TestEffectiveWindow(t *testing.T) {
	salon := schedule("09:00", "18:00", model.AllDays()...)

	tests := []struct {
		name   string
		staff  *model.WeeklySchedule
		date   model.Date
		want   model.Interval
		wantOK bool
	}{
		{
			name:   "intersection",
			staff:  schedule("12:00", "20:00", model.AllDays()...),
			date:   monday,
			want:   model.Interval{Start: at("12:00"), End: at("18:00")},
			wantOK: true,
		},
		{
			name:  "disjoint hours",
			staff: schedule("19:00", "20:00", model.AllDays()...),
			date:  monday,
		},
		{
			name:  "touching hours",
			staff: schedule("18:00", "20:00", model.AllDays()...),
			date:  monday,
		},
		{
			name:  "staff off that weekday",
			staff: schedule("09:00", "17:00", model.Weekdays()...),
			date:  sunday,
		},
		{
			name:   "staff inside salon hours",
			staff:  schedule("10:00", "11:30", model.AllDays()...),
			date:   tuesday,
			want:   model.Interval{Start: at("10:00"), End: at("11:30")},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EffectiveWindow(salon, tt.staff, tt.date)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	closedSalon := schedule("09:00", "18:00", model.Tuesday)
	_, ok := EffectiveWindow(closedSalon, schedule("09:00", "17:00", model.AllDays()...), monday)
	assert.False(t, ok, "salon closed on monday")

	_, ok = EffectiveWindow(nil, salon, monday)
	assert.False(t, ok)
}

func TestCollectExclusions(t *testing.T) {
	salon := model.Exclusions{
		Breaks: []model.Break{
			{Scope: model.ScopeSalon, Recurrence: model.Weekly{Day: model.Monday}, Start: at("13:00"), End: at("14:00"), Active: true},
			{Scope: model.ScopeSalon, Recurrence: model.Weekly{Day: model.Monday}, Start: at("15:00"), End: at("16:00"), Active: false},
		},
	}
	staff := model.Exclusions{
		Breaks: []model.Break{
			{Scope: model.ScopeStaff, Recurrence: model.OnDate{Date: monday}, Start: at("10:00"), End: at("10:30"), Active: true},
			{Scope: model.ScopeStaff, Recurrence: model.OnDate{Date: tuesday}, Start: at("11:00"), End: at("12:00"), Active: true},
			{Scope: model.ScopeStaff, Recurrence: model.Weekly{Day: model.Monday}, Start: at("12:00"), End: at("12:00"), Active: true},
		},
	}

	b := CollectExclusions(monday, salon, staff)
	assert.False(t, b.WholeDay)
	assert.Equal(t, []model.Interval{
		{Start: at("10:00"), End: at("10:30")},
		{Start: at("13:00"), End: at("14:00")},
	}, b.Windows)
	require.Len(t, b.Ignored, 1, "inconsistent break is reported, not applied")

	assert.True(t, b.Blocks(model.Span(at("13:30"), 30)))
	assert.False(t, b.Blocks(model.Span(at("14:00"), 30)))
	assert.False(t, b.Blocks(model.Span(at("12:00"), 30)))

	tb := CollectExclusions(tuesday, salon, staff)
	assert.Equal(t, []model.Interval{{Start: at("11:00"), End: at("12:00")}}, tb.Windows)
}

func TestCollectExclusions_Vacations(t *testing.T) {
	salonVacation := model.Exclusions{Vacations: []model.Vacation{
		{Scope: model.ScopeSalon, From: monday, To: monday, Active: true},
	}}
	staffVacation := model.Exclusions{Vacations: []model.Vacation{
		{Scope: model.ScopeStaff, From: monday.AddDays(-3), To: tuesday, Active: true},
	}}
	inactive := model.Exclusions{Vacations: []model.Vacation{
		{Scope: model.ScopeStaff, From: monday, To: tuesday, Active: false},
	}}

	assert.True(t, CollectExclusions(monday, salonVacation, model.Exclusions{}).WholeDay)
	assert.False(t, CollectExclusions(tuesday, salonVacation, model.Exclusions{}).WholeDay)
	assert.True(t, CollectExclusions(tuesday, model.Exclusions{}, staffVacation).WholeDay)
	assert.False(t, CollectExclusions(monday, model.Exclusions{}, inactive).WholeDay)

	b := CollectExclusions(monday, salonVacation, model.Exclusions{})
	assert.True(t, b.Blocks(model.Span(at("09:00"), 0)))
}

func TestConflicts(t *testing.T) {
	bookings := []model.Booking{booking("10:00", "11:00", model.StatusConfirmed)}

	assert.False(t, Conflicts(model.Span(at("11:00"), 60), bookings), "touching boundary")
	assert.False(t, Conflicts(model.Span(at("09:00"), 60), bookings), "touching boundary before")
	assert.True(t, Conflicts(model.Span(at("10:30"), 60), bookings))
	assert.True(t, Conflicts(model.Span(at("09:30"), 180), bookings))

	for _, st := range []model.BookingStatus{model.StatusCancelled, model.StatusCompleted, model.StatusNoShow} {
		assert.False(t, Conflicts(model.Span(at("10:00"), 60), []model.Booking{booking("10:00", "11:00", st)}), st)
	}
	for _, st := range model.BlockingStatuses {
		assert.True(t, Conflicts(model.Span(at("10:00"), 60), []model.Booking{booking("10:00", "11:00", st)}), st)
	}
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		step       int
		want       []model.TimeOfDay
	}{
		{"on grid", "09:00", "10:00", 30, times("09:00", "09:30", "10:00")},
		{"end off grid is appended", "09:00", "09:40", 30, times("09:00", "09:30", "09:40")},
		{"single point", "09:00", "09:00", 15, times("09:00")},
		{"default step", "09:00", "10:00", 0, times("09:00", "09:30", "10:00")},
		{"45 minute step", "09:00", "11:00", 45, times("09:00", "09:45", "10:30", "11:00")},
		{"inverted", "10:00", "09:00", 30, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Candidates(at(tt.start), at(tt.end), tt.step)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Candidates(at(tt.start), at(tt.end), tt.step), "restartable")
		})
	}
}

func TestEngine_EndToEnd(t *testing.T) {
	e := NewEngine()
	day := newDay(monday, booking("12:00", "12:30", model.StatusConfirmed))

	slots, err := e.AvailableSlots(day, 30, 0)
	require.NoError(t, err)

	want := times(
		"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
		"12:30", "13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
	)
	assert.Equal(t, want, slots)
	assert.NotContains(t, slots, at("12:00"))
	assert.Contains(t, slots, at("12:30"))
}

func TestEngine_FitCheck(t *testing.T) {
	e := NewEngine()
	day := newDay(monday)

	slots, err := e.AvailableSlots(day, 480, 30)
	require.NoError(t, err)
	assert.Equal(t, times("09:00"), slots)

	slots, err = e.AvailableSlots(day, 481, 30)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestEngine_StepInclusion(t *testing.T) {
	e := NewEngine()
	day := newDay(monday)
	day.Staff.Schedule = schedule("09:00", "10:00", model.Weekdays()...)

	plan, err := e.Plan(day, 20, 30)
	require.NoError(t, err)
	assert.Equal(t, at("09:40"), plan.LatestStart)
	assert.Equal(t, times("09:00", "09:30", "09:40"), plan.Slots)
}

func TestEngine_VacationDominance(t *testing.T) {
	e := NewEngine()
	day := newDay(monday)
	day.Staff.Exclusions.Vacations = []model.Vacation{{Scope: model.ScopeStaff, From: monday, To: monday, Active: true}}

	slots, err := e.AvailableSlots(day, 30, 30)
	require.NoError(t, err)
	assert.Empty(t, slots)

	ok, err := e.IsAvailable(day, at("10:00"), 30)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_MultiServiceMatchesSingle(t *testing.T) {
	e := NewEngine()
	day := newDay(monday, booking("11:00", "11:45", model.StatusPending))
	day.Salon.Exclusions.Breaks = []model.Break{
		{Scope: model.ScopeSalon, Recurrence: model.Weekly{Day: model.Monday}, Start: at("13:00"), End: at("13:30"), Active: true},
	}

	multi, err := e.AvailableSlotsForServices(day, []model.ServiceRequest{
		{ServiceID: 1, DurationMinutes: 30},
		{ServiceID: 2, DurationMinutes: 45},
	}, 15)
	require.NoError(t, err)

	single, err := e.AvailableSlots(day, 75, 15)
	require.NoError(t, err)

	assert.Equal(t, single, multi)
	assert.NotEmpty(t, multi)
}

func TestEngine_StatusFiltering(t *testing.T) {
	e := NewEngine()

	cancelled := newDay(monday, booking("10:00", "11:00", model.StatusCancelled))
	ok, err := e.IsAvailable(cancelled, at("10:00"), 60)
	require.NoError(t, err)
	assert.True(t, ok)

	confirmed := newDay(monday, booking("10:00", "11:00", model.StatusConfirmed))
	ok, err = e.IsAvailable(confirmed, at("10:00"), 60)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_IsAvailable(t *testing.T) {
	e := NewEngine()
	day := newDay(monday, booking("12:00", "12:30", model.StatusConfirmed))
	day.Staff.Exclusions.Breaks = []model.Break{
		{Scope: model.ScopeStaff, Recurrence: model.Weekly{Day: model.Monday}, Start: at("15:00"), End: at("15:30"), Active: true},
	}

	tests := []struct {
		name     string
		date     model.Date
		start    string
		duration int
		want     bool
	}{
		{"free morning", monday, "09:00", 60, true},
		{"before window", monday, "08:30", 30, false},
		{"runs past window", monday, "16:45", 30, false},
		{"ends exactly at window end", monday, "16:30", 30, true},
		{"overlaps booking", monday, "11:45", 30, false},
		{"starts when booking ends", monday, "12:30", 30, true},
		{"overlaps break", monday, "14:45", 30, false},
		{"ends when break starts", monday, "14:30", 30, true},
		{"staff day off", sunday, "10:00", 30, false},
		{"zero length add-on", monday, "12:30", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := day
			d.Date = tt.date
			got, err := e.IsAvailable(d, at(tt.start), tt.duration)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_StaffFlags(t *testing.T) {
	e := NewEngine()

	day := newDay(monday)
	day.Staff.AcceptsBookings = false
	slots, err := e.AvailableSlots(day, 30, 30)
	require.NoError(t, err)
	assert.Empty(t, slots)

	day = newDay(monday)
	day.Staff.IsActive = false
	ok, err := e.IsAvailable(day, at("10:00"), 30)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_IgnoresForeignBookings(t *testing.T) {
	e := NewEngine()
	other := booking("10:00", "11:00", model.StatusConfirmed)
	other.StaffID = 99
	otherDay := booking("10:00", "11:00", model.StatusConfirmed)
	otherDay.Date = tuesday

	ok, err := e.IsAvailable(newDay(monday, other, otherDay), at("10:00"), 60)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngine_Errors(t *testing.T) {
	e := NewEngine()

	day := newDay(monday)
	day.Staff.Schedule = nil
	_, err := e.AvailableSlots(day, 30, 30)
	assert.ErrorIs(t, err, model.ErrInvalidReference)

	day = newDay(monday)
	day.Salon = nil
	_, err = e.IsAvailable(day, at("10:00"), 30)
	assert.ErrorIs(t, err, model.ErrInvalidReference)

	day = newDay(monday)
	day.Staff.SalonID = 2
	_, err = e.AvailableSlots(day, 30, 30)
	assert.ErrorIs(t, err, model.ErrInvalidReference)

	day = newDay(monday)
	_, err = e.AvailableSlots(day, -1, 30)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = e.IsAvailable(day, model.TimeOfDay(-5), 30)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = e.AvailableSlotsForServices(day, nil, 30)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	day.Date = model.Date{}
	_, err = e.AvailableSlots(day, 30, 30)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}
