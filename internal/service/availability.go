package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/availability"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/metrics"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
)

// MaxScanDays bounds NextAvailableDates.
const MaxScanDays = 90

// closedCutoff is later than any start time, so every slot of the day is dropped.
const closedCutoff = model.TimeOfDay(model.MinutesPerDay + 1)

// Repository provides the read snapshots the engine works on.
type Repository interface {
	GetSalon(ctx context.Context, id int64) (*model.Salon, error)
	GetStaff(ctx context.Context, id int64) (*model.Staff, error)
	GetServices(ctx context.Context, salonID int64, ids []int64) ([]model.Service, error)
	ListStaffBookings(ctx context.Context, staffID int64, date model.Date) ([]model.Booking, error)
}

// AvailabilityService answers availability queries given caller strings. It loads snapshots,
// runs the engine, drops start times that are already too close to "now" and formats results.
type AvailabilityService struct {
	repo       Repository
	engine     *availability.Engine
	logger     zerolog.Logger
	now        func() time.Time
	minAdvance time.Duration
}

// Option configures an AvailabilityService.
type Option func(*AvailabilityService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *AvailabilityService) { s.now = now }
}

// WithMinAdvance sets how far ahead of now a same-day booking must start.
func WithMinAdvance(d time.Duration) Option {
	return func(s *AvailabilityService) {
		if d > 0 {
			s.minAdvance = d
		}
	}
}

func NewAvailabilityService(repo Repository, logger *zerolog.Logger, opts ...Option) *AvailabilityService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "availability").Logger()
	}
	s := &AvailabilityService{
		repo:   repo,
		engine: availability.NewEngine(),
		logger: l,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAvailable reports whether staffID can start a booking of duration minutes at the given time.
func (s *AvailabilityService) IsAvailable(ctx context.Context, staffID int64, date, at string, duration int) (bool, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		metrics.IncAvailability("is_available", "invalid")
		return false, err
	}
	start, err := model.ParseTimeOfDay(at)
	if err != nil {
		metrics.IncAvailability("is_available", "invalid")
		return false, err
	}

	ok, err := s.isAvailable(ctx, staffID, d, start, duration)
	metrics.IncAvailability("is_available", metrics.Result(err))
	return ok, err
}

// Slots returns the "HH:MM" start times for a booking of duration minutes.
func (s *AvailabilityService) Slots(ctx context.Context, staffID int64, date string, duration int) ([]string, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		metrics.IncAvailability("slots", "invalid")
		return nil, err
	}

	slots, err := s.slots(ctx, staffID, d, duration)
	metrics.IncAvailability("slots", metrics.Result(err))
	if err != nil {
		return nil, err
	}
	metrics.ObserveSlots(len(slots))
	return model.FormatTimes(slots), nil
}

// SlotsForServices resolves serviceIDs in the staff member's salon and returns the start times for
// performing all of them back-to-back. A repeated id counts once per occurrence.
func (s *AvailabilityService) SlotsForServices(ctx context.Context, staffID int64, date string, serviceIDs []int64) ([]string, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		metrics.IncAvailability("slots_for_services", "invalid")
		return nil, err
	}

	slots, err := s.slotsForServices(ctx, staffID, d, serviceIDs)
	metrics.IncAvailability("slots_for_services", metrics.Result(err))
	if err != nil {
		return nil, err
	}
	metrics.ObserveSlots(len(slots))
	return model.FormatTimes(slots), nil
}

func (s *AvailabilityService) slotsForServices(ctx context.Context, staffID int64, date model.Date, serviceIDs []int64) ([]model.TimeOfDay, error) {
	day, err := s.loadDay(ctx, staffID, date)
	if err != nil {
		return nil, err
	}
	requests, err := s.serviceRequests(ctx, day.Staff.SalonID, serviceIDs)
	if err != nil {
		return nil, err
	}

	slots, err := s.engine.AvailableSlotsForServices(day, requests, 0)
	if err != nil {
		return nil, err
	}
	return s.applyCutoff(day, slots)
}

// DaySummary describes a calendar day of one staff member.
type DaySummary struct {
	StaffID  int64  `json:"staff_id"`
	Date     string `json:"date"`
	Weekday  string `json:"weekday"`
	Duration int    `json:"duration"`
	// Open is false when the salon is closed, the staff member is off or cannot take bookings.
	Open        bool     `json:"open"`
	WindowStart string   `json:"window_start,omitempty"`
	WindowEnd   string   `json:"window_end,omitempty"`
	LatestStart string   `json:"latest_start,omitempty"`
	Vacation    bool     `json:"vacation"`
	Breaks      []string `json:"breaks"`
	Slots       []string `json:"slots"`
}

// DaySummary evaluates the day for a booking of duration minutes.
func (s *AvailabilityService) DaySummary(ctx context.Context, staffID int64, date string, duration int) (*DaySummary, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		metrics.IncAvailability("day_summary", "invalid")
		return nil, err
	}

	summary, err := s.daySummary(ctx, staffID, d, duration)
	metrics.IncAvailability("day_summary", metrics.Result(err))
	return summary, err
}

func (s *AvailabilityService) daySummary(ctx context.Context, staffID int64, date model.Date, duration int) (*DaySummary, error) {
	day, err := s.loadDay(ctx, staffID, date)
	if err != nil {
		return nil, err
	}
	plan, err := s.engine.Plan(day, duration, 0)
	if err != nil {
		return nil, err
	}
	s.reportIgnored(day, plan.Blocked)

	slots, err := s.applyCutoff(day, plan.Slots)
	if err != nil {
		return nil, err
	}

	summary := &DaySummary{
		StaffID:  staffID,
		Date:     date.String(),
		Weekday:  date.Weekday().String(),
		Duration: duration,
		Open:     plan.HasWindow && day.Staff.Bookable(),
		Vacation: plan.Blocked.WholeDay,
		Breaks:   make([]string, 0, len(plan.Blocked.Windows)),
		Slots:    model.FormatTimes(slots),
	}
	if plan.HasWindow {
		summary.WindowStart = plan.Window.Start.String()
		summary.WindowEnd = plan.Window.End.String()
		if plan.LatestStart >= plan.Window.Start {
			summary.LatestStart = plan.LatestStart.String()
		}
	}
	for _, w := range plan.Blocked.Windows {
		summary.Breaks = append(summary.Breaks, w.String())
	}
	return summary, nil
}

// NextAvailableDates scans days consecutive dates starting at from and returns those that have at
// least one start time for a booking of duration minutes.
func (s *AvailabilityService) NextAvailableDates(ctx context.Context, staffID int64, from string, days, duration int) ([]string, error) {
	start, err := model.ParseDate(from)
	if err != nil {
		metrics.IncAvailability("next_dates", "invalid")
		return nil, err
	}
	if days <= 0 || days > MaxScanDays {
		metrics.IncAvailability("next_dates", "invalid")
		return nil, fmt.Errorf("%w: days must be between 1 and %d", model.ErrInvalidInput, MaxScanDays)
	}

	dates, err := s.nextAvailableDates(ctx, staffID, start, days, duration)
	metrics.IncAvailability("next_dates", metrics.Result(err))
	return dates, err
}

func (s *AvailabilityService) nextAvailableDates(ctx context.Context, staffID int64, from model.Date, days, duration int) ([]string, error) {
	staff, salon, err := s.loadOwners(ctx, staffID)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0)
	for i := 0; i < days; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		date := from.AddDays(i)
		bookings, err := s.repo.ListStaffBookings(ctx, staffID, date)
		if err != nil {
			return nil, fmt.Errorf("list bookings: %w", err)
		}
		day := availability.Day{Salon: salon, Staff: staff, Date: date, Bookings: bookings}
		slots, err := s.engine.AvailableSlots(day, duration, 0)
		if err != nil {
			return nil, err
		}
		if slots, err = s.applyCutoff(day, slots); err != nil {
			return nil, err
		}
		if len(slots) > 0 {
			result = append(result, date.String())
		}
	}
	return result, nil
}

func (s *AvailabilityService) isAvailable(ctx context.Context, staffID int64, date model.Date, start model.TimeOfDay, duration int) (bool, error) {
	day, err := s.loadDay(ctx, staffID, date)
	if err != nil {
		return false, err
	}
	ok, err := s.engine.IsAvailable(day, start, duration)
	if err != nil || !ok {
		return false, err
	}
	earliest, err := s.earliestStart(day.Salon, date)
	if err != nil {
		return false, err
	}
	return start >= earliest, nil
}

func (s *AvailabilityService) slots(ctx context.Context, staffID int64, date model.Date, duration int) ([]model.TimeOfDay, error) {
	day, err := s.loadDay(ctx, staffID, date)
	if err != nil {
		return nil, err
	}
	plan, err := s.engine.Plan(day, duration, 0)
	if err != nil {
		return nil, err
	}
	s.reportIgnored(day, plan.Blocked)
	return s.applyCutoff(day, plan.Slots)
}

func (s *AvailabilityService) loadOwners(ctx context.Context, staffID int64) (*model.Staff, *model.Salon, error) {
	staff, err := s.repo.GetStaff(ctx, staffID)
	if err != nil {
		return nil, nil, referenceErr(err)
	}
	salon, err := s.repo.GetSalon(ctx, staff.SalonID)
	if err != nil {
		return nil, nil, referenceErr(err)
	}
	return staff, salon, nil
}

func (s *AvailabilityService) loadDay(ctx context.Context, staffID int64, date model.Date) (availability.Day, error) {
	staff, salon, err := s.loadOwners(ctx, staffID)
	if err != nil {
		return availability.Day{}, err
	}
	bookings, err := s.repo.ListStaffBookings(ctx, staffID, date)
	if err != nil {
		s.logger.Error().Err(err).Int64("staff_id", staffID).Str("date", date.String()).Msg("list bookings failed")
		return availability.Day{}, fmt.Errorf("list bookings: %w", err)
	}
	return availability.Day{Salon: salon, Staff: staff, Date: date, Bookings: bookings}, nil
}

func (s *AvailabilityService) serviceRequests(ctx context.Context, salonID int64, ids []int64) ([]model.ServiceRequest, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one service is required", model.ErrInvalidInput)
	}
	services, err := s.repo.GetServices(ctx, salonID, ids)
	if err != nil {
		return nil, referenceErr(err)
	}
	if len(services) != len(ids) {
		return nil, fmt.Errorf("%w: some of services %v are not offered by salon %d", model.ErrInvalidReference, ids, salonID)
	}
	requests := make([]model.ServiceRequest, 0, len(services))
	for i := range services {
		requests = append(requests, services[i].Request())
	}
	return requests, nil
}

// applyCutoff drops start times earlier than earliestStart.
func (s *AvailabilityService) applyCutoff(day availability.Day, slots []model.TimeOfDay) ([]model.TimeOfDay, error) {
	earliest, err := s.earliestStart(day.Salon, day.Date)
	if err != nil {
		return nil, err
	}
	out := make([]model.TimeOfDay, 0, len(slots))
	for _, t := range slots {
		if t >= earliest {
			out = append(out, t)
		}
	}
	return out, nil
}

// earliestStart is the first start time still bookable on date in the salon's time zone: nothing
// for past dates, now+minAdvance (rounded up to the minute) today, anything for future dates.
func (s *AvailabilityService) earliestStart(salon *model.Salon, date model.Date) (model.TimeOfDay, error) {
	loc, err := salon.Location()
	if err != nil {
		return 0, err
	}
	now := s.now().In(loc)
	today := model.DateOf(now)
	switch {
	case date.Before(today):
		return closedCutoff, nil
	case date.After(today):
		return 0, nil
	}

	limit := now.Add(s.minAdvance)
	if model.DateOf(limit) != today {
		return closedCutoff, nil
	}
	t := model.Clock(limit.Hour(), limit.Minute())
	if limit.Second() > 0 || limit.Nanosecond() > 0 {
		t = t.Add(1)
	}
	return t, nil
}

func (s *AvailabilityService) reportIgnored(day availability.Day, blocked availability.Blocked) {
	for _, br := range blocked.Ignored {
		s.logger.Warn().
			Int64("break_id", br.ID).
			Str("scope", string(br.Scope)).
			Int64("staff_id", day.Staff.ID).
			Str("date", day.Date.String()).
			Str("start", br.Start.String()).
			Str("end", br.End.String()).
			Msg("ignoring break that does not end after it starts")
	}
}

// referenceErr turns a missing salon, staff member or service into ErrInvalidReference.
func referenceErr(err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("%w: %v", model.ErrInvalidReference, err)
	}
	return err
}
