package availability

import "github.com/aaleksandraa/frizerino-backend-sub001/internal/model"

// Conflicts reports whether candidate overlaps any booking that occupies staff time.
// Bookings in non-blocking statuses are ignored.
func Conflicts(candidate model.Interval, bookings []model.Booking) bool {
	for i := range bookings {
		if !bookings[i].Status.Blocking() {
			continue
		}
		if candidate.Overlaps(bookings[i].Interval()) {
			return true
		}
	}
	return false
}

// bookingsFor keeps the bookings of staffID on date. Callers are expected to pass a snapshot
// that is already filtered; this guards against a wider snapshot leaking into the checks.
func bookingsFor(bookings []model.Booking, staffID int64, date model.Date) []model.Booking {
	out := bookings[:0:0]
	for _, b := range bookings {
		if b.StaffID == staffID && b.Date == date {
			out = append(out, b)
		}
	}
	return out
}
