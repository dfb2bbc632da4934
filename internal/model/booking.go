package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in_progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
	StatusNoShow     BookingStatus = "no_show"
)

// BlockingStatuses are the statuses that occupy staff time.
var BlockingStatuses = []BookingStatus{StatusPending, StatusConfirmed, StatusInProgress}

// ParseBookingStatus validates a status string.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch st := BookingStatus(s); st {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown booking status %q", ErrInvalidInput, s)
}

// Blocking reports whether a booking in this status blocks new bookings.
func (s BookingStatus) Blocking() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s BookingStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CanTransitionTo lists the allowed status changes.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if s.Terminal() || s == next {
		return false
	}
	switch next {
	case StatusConfirmed:
		return s == StatusPending
	case StatusInProgress:
		return s == StatusPending || s == StatusConfirmed
	case StatusCompleted:
		return s == StatusInProgress || s == StatusConfirmed
	case StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Booking is an existing appointment of one staff member.
type Booking struct {
	ID          int64         `json:"id"`
	Reference   string        `json:"reference"`
	SalonID     int64         `json:"salon_id"`
	StaffID     int64         `json:"staff_id"`
	Date        Date          `json:"-"`
	Start       TimeOfDay     `json:"-"`
	End         TimeOfDay     `json:"-"`
	Status      BookingStatus `json:"status"`
	ServiceIDs  []int64       `json:"service_ids,omitempty"`
	ClientName  string        `json:"client_name,omitempty"`
	ClientPhone string        `json:"client_phone,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Interval returns the booked time range.
func (b *Booking) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// ServiceRequest is one requested service. Services are performed back-to-back.
type ServiceRequest struct {
	ServiceID       int64
	DurationMinutes int
}

// TotalDuration sums the requested durations. Zero-length add-ons are allowed.
func TotalDuration(services []ServiceRequest) (int, error) {
	if len(services) == 0 {
		return 0, fmt.Errorf("%w: at least one service is required", ErrInvalidInput)
	}
	total := 0
	for _, s := range services {
		if s.DurationMinutes < 0 {
			return 0, fmt.Errorf("%w: service %d has negative duration %d", ErrInvalidInput, s.ServiceID, s.DurationMinutes)
		}
		total += s.DurationMinutes
	}
	return total, nil
}

// BookingEvent is one entry of a booking's history.
type BookingEvent struct {
	ID         int64           `json:"id"`
	BookingID  int64           `json:"booking_id"`
	Type       string          `json:"type"`
	Status     BookingStatus   `json:"status"`
	PrevStatus BookingStatus   `json:"prev_status,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}
