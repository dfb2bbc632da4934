package model

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // salons may run on hosts without a zoneinfo database
)

var (
	ErrInvalidReference = errors.New("invalid reference")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrSlotUnavailable  = errors.New("slot is not available")
	ErrLockTimeout      = errors.New("timed out waiting for booking lock")
)

// DefaultSlotStep is used when a salon has no slot step configured.
const DefaultSlotStep = 30

// SlotSteps are the slot step intervals a salon may choose from.
var SlotSteps = []int{15, 30, 45, 60}

// ValidSlotStep reports whether minutes is one of SlotSteps.
func ValidSlotStep(minutes int) bool {
	for _, s := range SlotSteps {
		if s == minutes {
			return true
		}
	}
	return false
}

// Salon is a read snapshot of a salon's calendar data.
type Salon struct {
	ID         int64
	Name       string
	Timezone   string
	SlotStep   int
	Schedule   *WeeklySchedule
	Exclusions Exclusions
}

// Step returns the configured slot step, or DefaultSlotStep.
func (s *Salon) Step() int {
	if s.SlotStep <= 0 {
		return DefaultSlotStep
	}
	return s.SlotStep
}

// Location resolves the salon time zone, falling back to UTC for empty names.
func (s *Salon) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: salon %d timezone %q", ErrInvalidInput, s.ID, s.Timezone)
	}
	return loc, nil
}

// Staff is a read snapshot of a staff member's calendar data.
type Staff struct {
	ID              int64
	SalonID         int64
	Name            string
	IsActive        bool
	IsPublic        bool
	AcceptsBookings bool
	Schedule        *WeeklySchedule
	Exclusions      Exclusions
}

// Bookable reports whether the staff member can take bookings at all.
func (s *Staff) Bookable() bool {
	return s.IsActive && s.AcceptsBookings
}

// Service is a salon service with its duration.
type Service struct {
	ID              int64
	SalonID         int64
	Name            string
	DurationMinutes int
	IsActive        bool
}

// Request converts the service to a ServiceRequest.
func (s *Service) Request() ServiceRequest {
	return ServiceRequest{ServiceID: s.ID, DurationMinutes: s.DurationMinutes}
}
