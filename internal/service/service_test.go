package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/events"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/lock"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetSalon(ctx context.Context, id int64) (*model.Salon, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Salon), args.Error(1)
}

func (m *mockRepo) GetStaff(ctx context.Context, id int64) (*model.Staff, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Staff), args.Error(1)
}

func (m *mockRepo) GetServices(ctx context.Context, salonID int64, ids []int64) ([]model.Service, error) {
	args := m.Called(ctx, salonID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Service), args.Error(1)
}

func (m *mockRepo) ListStaffBookings(ctx context.Context, staffID int64, date model.Date) ([]model.Booking, error) {
	args := m.Called(ctx, staffID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Booking), args.Error(1)
}

func (m *mockRepo) CreateBooking(ctx context.Context, b *model.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockRepo) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *mockRepo) UpdateBookingStatus(ctx context.Context, id int64, from, to model.BookingStatus) error {
	return m.Called(ctx, id, from, to).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload any) error {
	return m.Called(eventType, payload).Error(0)
}

var monday = model.MustParseDate("2026-10-19")

// beforeTestDates lies before every date used below, so no cutoff applies.
var beforeTestDates = time.Date(2026, 10, 1, 6, 0, 0, 0, time.UTC)

func weekdayHours(start, end string) *model.WeeklySchedule {
	s := model.Uniform(model.MustParseTimeOfDay(start), model.MustParseTimeOfDay(end), model.Weekdays()...)
	return &s
}

func fixture() (*model.Salon, *model.Staff) {
	salon := &model.Salon{ID: 1, Name: "Studio Ana", SlotStep: 30, Schedule: weekdayHours("08:00", "20:00")}
	staff := &model.Staff{
		ID: 7, SalonID: 1, Name: "Maja",
		IsActive: true, IsPublic: true, AcceptsBookings: true,
		Schedule: weekdayHours("09:00", "17:00"),
	}
	return salon, staff
}

func confirmed(start, end string) model.Booking {
	return model.Booking{
		ID: 1, SalonID: 1, StaffID: 7, Date: monday,
		Start: model.MustParseTimeOfDay(start), End: model.MustParseTimeOfDay(end),
		Status: model.StatusConfirmed,
	}
}

func newRepo(salon *model.Salon, staff *model.Staff, bookings ...model.Booking) *mockRepo {
	repo := new(mockRepo)
	repo.On("GetStaff", mock.Anything, staff.ID).Return(staff, nil)
	repo.On("GetSalon", mock.Anything, salon.ID).Return(salon, nil)
	repo.On("ListStaffBookings", mock.Anything, staff.ID, mock.Anything).Return(bookings, nil)
	return repo
}

func newAvailability(repo Repository, now time.Time, opts ...Option) *AvailabilityService {
	logger := zerolog.New(io.Discard)
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewAvailabilityService(repo, &logger, opts...)
}

func TestAvailabilityService_Slots(t *testing.T) {
	salon, staff := fixture()
	svc := newAvailability(newRepo(salon, staff, confirmed("12:00", "12:30")), beforeTestDates)
	ctx := context.Background()

	want := []string{
		"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
		"12:30", "13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
	}

	got, err := svc.Slots(ctx, 7, "2026-10-19", 30)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	local, err := svc.Slots(ctx, 7, "19.10.2026", 30)
	require.NoError(t, err)
	assert.Equal(t, got, local)

	weekend, err := svc.Slots(ctx, 7, "2026-10-24", 30)
	require.NoError(t, err)
	assert.Empty(t, weekend)
}

func TestAvailabilityService_Errors(t *testing.T) {
	salon, staff := fixture()
	repo := newRepo(salon, staff)
	repo.On("GetStaff", mock.Anything, int64(99)).Return(nil, fmt.Errorf("%w: staff 99", model.ErrNotFound))
	svc := newAvailability(repo, beforeTestDates)
	ctx := context.Background()

	_, err := svc.Slots(ctx, 7, "2026/10/19", 30)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.Slots(ctx, 7, "2026-10-19", -5)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.IsAvailable(ctx, 7, "2026-10-19", "9am", 30)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.Slots(ctx, 99, "2026-10-19", 30)
	assert.ErrorIs(t, err, model.ErrInvalidReference)

	_, err = svc.SlotsForServices(ctx, 7, "2026-10-19", nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestAvailabilityService_IsAvailable(t *testing.T) {
	salon, staff := fixture()
	svc := newAvailability(newRepo(salon, staff, confirmed("10:00", "11:00")), beforeTestDates)
	ctx := context.Background()

	tests := []struct {
		at       string
		duration int
		want     bool
	}{
		{"09:00", 60, true},
		{"09:30", 60, false},
		{"11:00", 60, true},
		{"16:30", 30, true},
		{"16:30", 31, false},
		{"08:30", 30, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s+%d", tt.at, tt.duration), func(t *testing.T) {
			got, err := svc.IsAvailable(ctx, 7, "2026-10-19", tt.at, tt.duration)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAvailabilityService_SlotsForServices(t *testing.T) {
	salon, staff := fixture()
	repo := newRepo(salon, staff, confirmed("12:00", "12:30"))
	repo.On("GetServices", mock.Anything, int64(1), []int64{1, 2}).Return([]model.Service{
		{ID: 1, SalonID: 1, DurationMinutes: 30, IsActive: true},
		{ID: 2, SalonID: 1, DurationMinutes: 45, IsActive: true},
	}, nil)
	repo.On("GetServices", mock.Anything, int64(1), []int64{1, 1}).Return([]model.Service{
		{ID: 1, SalonID: 1, DurationMinutes: 30, IsActive: true},
		{ID: 1, SalonID: 1, DurationMinutes: 30, IsActive: true},
	}, nil)
	repo.On("GetServices", mock.Anything, int64(1), []int64{42}).
		Return(nil, fmt.Errorf("%w: service 42", model.ErrInvalidReference))
	svc := newAvailability(repo, beforeTestDates)
	ctx := context.Background()

	combined, err := svc.SlotsForServices(ctx, 7, "2026-10-19", []int64{1, 2})
	require.NoError(t, err)
	single, err := svc.Slots(ctx, 7, "2026-10-19", 75)
	require.NoError(t, err)
	assert.Equal(t, single, combined)
	assert.Equal(t, "15:45", combined[len(combined)-1], "latest start is always offered")

	twice, err := svc.SlotsForServices(ctx, 7, "2026-10-19", []int64{1, 1})
	require.NoError(t, err)
	hour, err := svc.Slots(ctx, 7, "2026-10-19", 60)
	require.NoError(t, err)
	assert.Equal(t, hour, twice)

	_, err = svc.SlotsForServices(ctx, 7, "2026-10-19", []int64{42})
	assert.ErrorIs(t, err, model.ErrInvalidReference)
}

func TestAvailabilityService_MinAdvanceToday(t *testing.T) {
	salon, staff := fixture()
	salon.Timezone = "Europe/Sarajevo"
	// 10:10 in Sarajevo (UTC+2 until the end of October).
	now := time.Date(2026, 10, 19, 8, 10, 0, 0, time.UTC)
	svc := newAvailability(newRepo(salon, staff, confirmed("12:00", "12:30")), now, WithMinAdvance(30*time.Minute))
	ctx := context.Background()

	got, err := svc.Slots(ctx, 7, "2026-10-19", 30)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, []string{"11:00", "11:30", "12:30"}, got[:3])

	ok, err := svc.IsAvailable(ctx, 7, "2026-10-19", "10:30", 30)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsAvailable(ctx, 7, "2026-10-19", "11:00", 30)
	require.NoError(t, err)
	assert.True(t, ok)

	past, err := svc.Slots(ctx, 7, "2026-10-16", 30)
	require.NoError(t, err)
	assert.Empty(t, past)

	tomorrow, err := svc.Slots(ctx, 7, "2026-10-20", 30)
	require.NoError(t, err)
	assert.Equal(t, "09:00", tomorrow[0])
}

func TestAvailabilityService_DaySummary(t *testing.T) {
	salon, staff := fixture()
	salon.Exclusions.Breaks = []model.Break{
		{ID: 1, Scope: model.ScopeSalon, Recurrence: model.Weekly{Day: model.Monday},
			Start: model.Clock(13, 0), End: model.Clock(13, 30), Active: true},
		{ID: 2, Scope: model.ScopeSalon, Recurrence: model.Weekly{Day: model.Monday},
			Start: model.Clock(15, 0), End: model.Clock(14, 0), Active: true},
	}
	staff.Exclusions.Vacations = []model.Vacation{
		{ID: 1, Scope: model.ScopeStaff, From: model.MustParseDate("2026-10-20"), To: model.MustParseDate("2026-10-21"), Active: true},
	}

	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	svc := NewAvailabilityService(newRepo(salon, staff), &logger, WithClock(func() time.Time { return beforeTestDates }))
	ctx := context.Background()

	summary, err := svc.DaySummary(ctx, 7, "19.10.2026", 60)
	require.NoError(t, err)
	assert.True(t, summary.Open)
	assert.Equal(t, "2026-10-19", summary.Date)
	assert.Equal(t, "monday", summary.Weekday)
	assert.Equal(t, "09:00", summary.WindowStart)
	assert.Equal(t, "17:00", summary.WindowEnd)
	assert.Equal(t, "16:00", summary.LatestStart)
	assert.Equal(t, []string{"13:00-13:30"}, summary.Breaks)
	assert.NotContains(t, summary.Slots, "12:30")
	assert.NotContains(t, summary.Slots, "13:00")
	assert.Contains(t, summary.Slots, "13:30")
	assert.Contains(t, logs.String(), "ignoring break")

	vacation, err := svc.DaySummary(ctx, 7, "2026-10-20", 60)
	require.NoError(t, err)
	assert.True(t, vacation.Vacation)
	assert.Empty(t, vacation.Slots)

	closed, err := svc.DaySummary(ctx, 7, "2026-10-25", 60)
	require.NoError(t, err)
	assert.False(t, closed.Open)
	assert.Empty(t, closed.WindowStart)
}

func TestAvailabilityService_NextAvailableDates(t *testing.T) {
	salon, staff := fixture()
	svc := newAvailability(newRepo(salon, staff), beforeTestDates)
	ctx := context.Background()

	// Friday through Monday.
	dates, err := svc.NextAvailableDates(ctx, 7, "2026-10-23", 4, 60)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-23", "2026-10-26"}, dates)

	none, err := svc.NextAvailableDates(ctx, 7, "2026-10-23", 4, 9*60)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.NextAvailableDates(ctx, 7, "2026-10-23", 0, 60)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = svc.NextAvailableDates(ctx, 7, "2026-10-23", MaxScanDays+1, 60)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func bookingServiceWith(repo *mockRepo, pub EventPublisher, locker lock.Locker) *BookingService {
	logger := zerolog.New(io.Discard)
	return NewBookingService(repo, newAvailability(repo, beforeTestDates), locker, pub, &logger)
}

func TestBookingService_Create(t *testing.T) {
	salon, staff := fixture()
	ctx := context.Background()
	services := []model.Service{
		{ID: 1, SalonID: 1, DurationMinutes: 30, IsActive: true},
		{ID: 2, SalonID: 1, DurationMinutes: 45, IsActive: true},
	}

	t.Run("Success", func(t *testing.T) {
		repo := newRepo(salon, staff, confirmed("12:00", "12:30"))
		repo.On("GetServices", mock.Anything, int64(1), []int64{1, 2}).Return(services, nil)
		repo.On("CreateBooking", mock.Anything, mock.AnythingOfType("*model.Booking")).
			Run(func(args mock.Arguments) { args.Get(1).(*model.Booking).ID = 42 }).
			Return(nil).Once()
		pub := new(mockPublisher)
		pub.On("PublishJSON", events.BookingCreated, mock.AnythingOfType("events.BookingPayload")).Return(nil).Once()
		svc := bookingServiceWith(repo, pub, lock.NewLocalLocker(time.Second))

		b, err := svc.Create(ctx, CreateBookingRequest{
			StaffID: 7, Date: "19.10.2026", Time: "12:30", ServiceIDs: []int64{1, 2}, ClientName: " Lejla ",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(42), b.ID)
		assert.Equal(t, model.Clock(13, 45), b.End)
		assert.Equal(t, model.StatusPending, b.Status)
		assert.Equal(t, "Lejla", b.ClientName)
		assert.Equal(t, monday, b.Date)
		repo.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("SlotTaken", func(t *testing.T) {
		repo := newRepo(salon, staff, confirmed("12:00", "12:30"))
		repo.On("GetServices", mock.Anything, int64(1), []int64{1}).Return(services[:1], nil)
		svc := bookingServiceWith(repo, new(mockPublisher), lock.NewLocalLocker(time.Second))

		_, err := svc.Create(ctx, CreateBookingRequest{
			StaffID: 7, Date: "2026-10-19", Time: "12:00", ServiceIDs: []int64{1}, ClientName: "Lejla",
		})
		assert.ErrorIs(t, err, model.ErrSlotUnavailable)
		repo.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	})

	t.Run("StoreRejectsOverlap", func(t *testing.T) {
		repo := newRepo(salon, staff)
		repo.On("GetServices", mock.Anything, int64(1), []int64{1}).Return(services[:1], nil)
		repo.On("CreateBooking", mock.Anything, mock.Anything).Return(model.ErrSlotUnavailable).Once()
		svc := bookingServiceWith(repo, new(mockPublisher), lock.NewLocalLocker(time.Second))

		_, err := svc.Create(ctx, CreateBookingRequest{
			StaffID: 7, Date: "2026-10-19", Time: "10:00", ServiceIDs: []int64{1}, ClientName: "Lejla",
		})
		assert.ErrorIs(t, err, model.ErrSlotUnavailable)
	})

	t.Run("LockTimeout", func(t *testing.T) {
		repo := newRepo(salon, staff)
		repo.On("GetServices", mock.Anything, int64(1), []int64{1}).Return(services[:1], nil)
		locker := lock.NewLocalLocker(10 * time.Millisecond)
		unlock, err := locker.Lock(ctx, lock.StaffDayKey(7, monday))
		require.NoError(t, err)
		defer unlock()
		svc := bookingServiceWith(repo, new(mockPublisher), locker)

		_, err = svc.Create(ctx, CreateBookingRequest{
			StaffID: 7, Date: "2026-10-19", Time: "10:00", ServiceIDs: []int64{1}, ClientName: "Lejla",
		})
		assert.ErrorIs(t, err, model.ErrLockTimeout)
	})

	t.Run("Validation", func(t *testing.T) {
		repo := newRepo(salon, staff)
		repo.On("GetServices", mock.Anything, int64(1), []int64{3}).
			Return([]model.Service{{ID: 3, SalonID: 1, DurationMinutes: 0, IsActive: true}}, nil)
		svc := bookingServiceWith(repo, new(mockPublisher), lock.NewLocalLocker(time.Second))

		tests := []struct {
			name string
			req  CreateBookingRequest
		}{
			{"bad date", CreateBookingRequest{StaffID: 7, Date: "19/10/2026", Time: "10:00", ServiceIDs: []int64{1}, ClientName: "A"}},
			{"bad time", CreateBookingRequest{StaffID: 7, Date: "2026-10-19", Time: "25:00", ServiceIDs: []int64{1}, ClientName: "A"}},
			{"no client", CreateBookingRequest{StaffID: 7, Date: "2026-10-19", Time: "10:00", ServiceIDs: []int64{1}}},
			{"no services", CreateBookingRequest{StaffID: 7, Date: "2026-10-19", Time: "10:00", ClientName: "A"}},
			{"zero length", CreateBookingRequest{StaffID: 7, Date: "2026-10-19", Time: "10:00", ServiceIDs: []int64{3}, ClientName: "A"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.Create(ctx, tt.req)
				assert.ErrorIs(t, err, model.ErrInvalidInput)
			})
		}
	})
}

// memRepo is an in-memory store that, unlike the mock, reflects created bookings in later reads.
type memRepo struct {
	mu       sync.Mutex
	salon    *model.Salon
	staff    *model.Staff
	bookings []model.Booking
}

func (r *memRepo) GetSalon(context.Context, int64) (*model.Salon, error) { return r.salon, nil }
func (r *memRepo) GetStaff(context.Context, int64) (*model.Staff, error) { return r.staff, nil }

func (r *memRepo) GetServices(_ context.Context, salonID int64, ids []int64) ([]model.Service, error) {
	out := make([]model.Service, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Service{ID: id, SalonID: salonID, DurationMinutes: 30, IsActive: true})
	}
	return out, nil
}

func (r *memRepo) ListStaffBookings(context.Context, int64, model.Date) ([]model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Widen the window between check and insert.
	time.Sleep(time.Millisecond)
	return append([]model.Booking(nil), r.bookings...), nil
}

func (r *memRepo) CreateBooking(_ context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = int64(len(r.bookings) + 1)
	r.bookings = append(r.bookings, *b)
	return nil
}

func (r *memRepo) GetBooking(context.Context, int64) (*model.Booking, error) {
	return nil, model.ErrNotFound
}

func (r *memRepo) UpdateBookingStatus(context.Context, int64, model.BookingStatus, model.BookingStatus) error {
	return nil
}

func TestBookingService_ConcurrentCreateSameSlot(t *testing.T) {
	salon, staff := fixture()
	repo := &memRepo{salon: salon, staff: staff}
	logger := zerolog.New(io.Discard)
	avail := NewAvailabilityService(repo, &logger, WithClock(func() time.Time { return beforeTestDates }))
	bus := events.NewEventBus(nil)
	svc := NewBookingService(repo, avail, lock.NewLocalLocker(5*time.Second), bus, &logger)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), CreateBookingRequest{
				StaffID: 7, Date: "2026-10-19", Time: "10:00", ServiceIDs: []int64{1}, ClientName: "Lejla",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, model.ErrSlotUnavailable):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)
	assert.Len(t, repo.bookings, 1)
}

func TestBookingService_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Confirm", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(10)).Return(&model.Booking{ID: 10, Status: model.StatusPending, Date: monday}, nil).Once()
		repo.On("UpdateBookingStatus", ctx, int64(10), model.StatusPending, model.StatusConfirmed).Return(nil).Once()
		pub := new(mockPublisher)
		pub.On("PublishJSON", events.BookingStatusChanged, mock.MatchedBy(func(p events.BookingPayload) bool {
			return p.Status == "confirmed" && p.PrevStatus == "pending"
		})).Return(nil).Once()
		svc := bookingServiceWith(repo, pub, lock.NewLocalLocker(time.Second))

		b, err := svc.UpdateStatus(ctx, 10, "confirmed")
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, b.Status)
		repo.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("TerminalCannotMove", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(11)).Return(&model.Booking{ID: 11, Status: model.StatusCompleted}, nil).Once()
		svc := bookingServiceWith(repo, new(mockPublisher), lock.NewLocalLocker(time.Second))

		_, err := svc.UpdateStatus(ctx, 11, "cancelled")
		assert.ErrorIs(t, err, model.ErrInvalidInput)
		repo.AssertNotCalled(t, "UpdateBookingStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		svc := bookingServiceWith(new(mockRepo), new(mockPublisher), lock.NewLocalLocker(time.Second))
		_, err := svc.UpdateStatus(ctx, 12, "archived")
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(13)).Return(nil, fmt.Errorf("%w: booking 13", model.ErrNotFound)).Once()
		svc := bookingServiceWith(repo, new(mockPublisher), lock.NewLocalLocker(time.Second))

		_, err := svc.UpdateStatus(ctx, 13, "cancelled")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}
