// Package availability computes bookable start times for a staff member on a calendar day.
//
// Everything here is a pure function of the snapshots passed in: nothing is cached, nothing is
// shared, and an Engine can be used from any number of goroutines at once.
package availability

import (
	"fmt"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
)

// Day is the read snapshot the engine works on: one salon, one staff member, one date and the
// staff member's bookings for that date.
type Day struct {
	Salon    *model.Salon
	Staff    *model.Staff
	Date     model.Date
	Bookings []model.Booking
}

// Plan is the detailed outcome of evaluating a Day for a given duration.
type Plan struct {
	// Window is the effective window; HasWindow is false when the salon is closed, the staff
	// member is off, or the two schedules do not overlap.
	Window    model.Interval
	HasWindow bool
	// LatestStart is the last start time at which the duration still fits into Window.
	LatestStart model.TimeOfDay
	Blocked     Blocked
	Slots       []model.TimeOfDay
}

// Engine answers availability questions. The zero value is ready to use.
type Engine struct{}

// NewEngine returns an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// IsAvailable reports whether the staff member can start a booking of duration minutes at start.
func (e *Engine) IsAvailable(day Day, start model.TimeOfDay, duration int) (bool, error) {
	if err := validate(day, duration); err != nil {
		return false, err
	}
	if !start.Valid() {
		return false, fmt.Errorf("%w: start time %d out of range", model.ErrInvalidInput, int(start))
	}
	if !day.Staff.Bookable() {
		return false, nil
	}

	window, ok := EffectiveWindow(day.Salon.Schedule, day.Staff.Schedule, day.Date)
	if !ok {
		return false, nil
	}

	candidate := model.Span(start, duration)
	if !window.Contains(candidate) {
		return false, nil
	}

	blocked := CollectExclusions(day.Date, day.Salon.Exclusions, day.Staff.Exclusions)
	bookings := bookingsFor(day.Bookings, day.Staff.ID, day.Date)
	return free(candidate, blocked, bookings), nil
}

// AvailableSlots returns the ordered start times at which a booking of totalDuration minutes fits.
// A step of zero uses the salon's configured slot step.
func (e *Engine) AvailableSlots(day Day, totalDuration, step int) ([]model.TimeOfDay, error) {
	plan, err := e.Plan(day, totalDuration, step)
	if err != nil {
		return nil, err
	}
	return plan.Slots, nil
}

// AvailableSlotsForServices is AvailableSlots for several services performed back-to-back by the
// same staff member.
func (e *Engine) AvailableSlotsForServices(day Day, services []model.ServiceRequest, step int) ([]model.TimeOfDay, error) {
	total, err := model.TotalDuration(services)
	if err != nil {
		return nil, err
	}
	return e.AvailableSlots(day, total, step)
}

// Plan evaluates the day and keeps the intermediate results alongside the slots.
func (e *Engine) Plan(day Day, totalDuration, step int) (Plan, error) {
	var plan Plan
	if err := validate(day, totalDuration); err != nil {
		return plan, err
	}
	if step < 0 {
		return plan, fmt.Errorf("%w: negative slot step %d", model.ErrInvalidInput, step)
	}
	if step == 0 {
		step = day.Salon.Step()
	}

	plan.Blocked = CollectExclusions(day.Date, day.Salon.Exclusions, day.Staff.Exclusions)

	if !day.Staff.Bookable() {
		return plan, nil
	}

	plan.Window, plan.HasWindow = EffectiveWindow(day.Salon.Schedule, day.Staff.Schedule, day.Date)
	if !plan.HasWindow {
		return plan, nil
	}

	plan.LatestStart = plan.Window.End.Add(-totalDuration)
	if plan.LatestStart < plan.Window.Start || plan.Blocked.WholeDay {
		return plan, nil
	}

	bookings := bookingsFor(day.Bookings, day.Staff.ID, day.Date)
	for _, c := range Candidates(plan.Window.Start, plan.LatestStart, step) {
		if free(model.Span(c, totalDuration), plan.Blocked, bookings) {
			plan.Slots = append(plan.Slots, c)
		}
	}
	return plan, nil
}

func free(candidate model.Interval, blocked Blocked, bookings []model.Booking) bool {
	return !blocked.Blocks(candidate) && !Conflicts(candidate, bookings)
}

func validate(day Day, duration int) error {
	if day.Salon == nil {
		return fmt.Errorf("%w: salon is missing", model.ErrInvalidReference)
	}
	if day.Staff == nil {
		return fmt.Errorf("%w: staff is missing", model.ErrInvalidReference)
	}
	if day.Staff.SalonID != 0 && day.Staff.SalonID != day.Salon.ID {
		return fmt.Errorf("%w: staff %d does not belong to salon %d", model.ErrInvalidReference, day.Staff.ID, day.Salon.ID)
	}
	if day.Salon.Schedule == nil {
		return fmt.Errorf("%w: salon %d has no weekly schedule", model.ErrInvalidReference, day.Salon.ID)
	}
	if day.Staff.Schedule == nil {
		return fmt.Errorf("%w: staff %d has no weekly schedule", model.ErrInvalidReference, day.Staff.ID)
	}
	if day.Date.IsZero() {
		return fmt.Errorf("%w: date is required", model.ErrInvalidInput)
	}
	if duration < 0 {
		return fmt.Errorf("%w: negative duration %d", model.ErrInvalidInput, duration)
	}
	return nil
}
