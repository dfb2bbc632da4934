// Package lock serializes booking writes per staff member and date. The Redis implementation
// coordinates several salond instances; LocalLocker covers a single process and is the fallback
// when Redis is unreachable.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
)

// Locker acquires an exclusive lock on key. The returned unlock func is safe to call more than
// once. model.ErrLockTimeout is returned when the lock could not be taken in time.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// StaffDayKey is the lock key guarding the bookings of one staff member on one date.
func StaffDayKey(staffID int64, date model.Date) string {
	return fmt.Sprintf("booking:staff:%d:%s", staffID, date)
}

func withWait(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, wait)
}

// waitErr reports why waiting stopped: cancellation of the caller's context wins over the
// lock's own wait budget.
func waitErr(parent context.Context, key string) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", model.ErrLockTimeout, key)
}
