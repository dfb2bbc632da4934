package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/events"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/lock"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/metrics"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
)

// BookingRepository adds the write side to Repository.
type BookingRepository interface {
	Repository
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, from, to model.BookingStatus) error
}

// CreateBookingRequest is a client's booking request.
type CreateBookingRequest struct {
	StaffID     int64   `json:"staff_id"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	ServiceIDs  []int64 `json:"service_ids"`
	ClientName  string  `json:"client_name"`
	ClientPhone string  `json:"client_phone"`
}

// EventPublisher receives booking events.
type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// BookingService creates bookings without double-booking a staff member.
type BookingService struct {
	repo         BookingRepository
	availability *AvailabilityService
	locker       lock.Locker
	bus          EventPublisher
	logger       zerolog.Logger
}

func NewBookingService(
	repo BookingRepository,
	avail *AvailabilityService,
	locker lock.Locker,
	bus EventPublisher,
	logger *zerolog.Logger,
) *BookingService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "booking").Logger()
	}
	return &BookingService{repo: repo, availability: avail, locker: locker, bus: bus, logger: l}
}

// Create books the requested services back-to-back starting at req.Time. The availability check and
// the insert run under the staff member's per-date lock; the insert itself re-checks overlaps, so
// ErrSlotUnavailable is returned to whichever of two racing requests comes second.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	b, err := s.create(ctx, req)
	switch {
	case err == nil:
		metrics.IncBookingCreated("ok")
	case errors.Is(err, model.ErrSlotUnavailable):
		metrics.IncBookingCreated("conflict")
	case errors.Is(err, model.ErrLockTimeout):
		metrics.IncBookingCreated("lock_timeout")
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrInvalidReference):
		metrics.IncBookingCreated("invalid")
	default:
		metrics.IncBookingCreated("error")
	}
	return b, err
}

func (s *BookingService) create(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	start, err := model.ParseTimeOfDay(req.Time)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ClientName) == "" {
		return nil, fmt.Errorf("%w: client_name is required", model.ErrInvalidInput)
	}

	staff, err := s.repo.GetStaff(ctx, req.StaffID)
	if err != nil {
		return nil, referenceErr(err)
	}
	requests, err := s.availability.serviceRequests(ctx, staff.SalonID, req.ServiceIDs)
	if err != nil {
		return nil, err
	}
	total, err := model.TotalDuration(requests)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: the requested services take no time", model.ErrInvalidInput)
	}

	key := lock.StaffDayKey(staff.ID, date)
	waitStart := time.Now()
	unlock, err := s.locker.Lock(ctx, key)
	metrics.ObserveLockWait(time.Since(waitStart))
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("booking lock not acquired")
		return nil, err
	}
	defer unlock()

	ok, err := s.availability.isAvailable(ctx, staff.ID, date, start, total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: staff %d %s %s", model.ErrSlotUnavailable, staff.ID, date, model.Span(start, total))
	}

	b := &model.Booking{
		SalonID:     staff.SalonID,
		StaffID:     staff.ID,
		Date:        date,
		Start:       start,
		End:         start.Add(total),
		Status:      model.StatusPending,
		ServiceIDs:  append([]int64(nil), req.ServiceIDs...),
		ClientName:  strings.TrimSpace(req.ClientName),
		ClientPhone: strings.TrimSpace(req.ClientPhone),
	}
	if err := s.repo.CreateBooking(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", b.ID).
		Int64("staff_id", b.StaffID).
		Str("date", date.String()).
		Str("interval", b.Interval().String()).
		Int("minutes", b.Interval().Minutes()).
		Msg("booking created")
	s.publish(events.BookingCreated, b, "")
	return b, nil
}

// UpdateStatus moves a booking to status. Terminal statuses cannot be left.
func (s *BookingService) UpdateStatus(ctx context.Context, id int64, status string) (*model.Booking, error) {
	next, err := model.ParseBookingStatus(status)
	if err != nil {
		return nil, err
	}
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := b.Status
	if !prev.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: booking %d cannot move from %s to %s", model.ErrInvalidInput, id, prev, next)
	}
	if err := s.repo.UpdateBookingStatus(ctx, id, prev, next); err != nil {
		return nil, err
	}
	b.Status = next
	metrics.IncStatusChange(string(next))

	s.logger.Info().
		Int64("booking_id", id).
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("booking status changed")
	s.publish(events.BookingStatusChanged, b, prev)
	return b, nil
}

// Get returns a booking by id.
func (s *BookingService) Get(ctx context.Context, id int64) (*model.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) publish(eventType string, b *model.Booking, prev model.BookingStatus) {
	if s.bus == nil {
		return
	}
	err := s.bus.PublishJSON(eventType, events.BookingPayload{
		BookingID:  b.ID,
		Reference:  b.Reference,
		SalonID:    b.SalonID,
		StaffID:    b.StaffID,
		Date:       b.Date.String(),
		Start:      b.Start.String(),
		End:        b.End.String(),
		Status:     string(b.Status),
		PrevStatus: string(prev),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("publish failed")
	}
}
