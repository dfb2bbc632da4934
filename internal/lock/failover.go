package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/metrics"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
)

const recheckInterval = time.Minute

// FailoverLocker uses primary while it is healthy and switches to fallback on errors. The
// primary is retried once recheckInterval has passed since the last failure.
type FailoverLocker struct {
	primary  Locker
	fallback Locker
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverLocker(primary, fallback Locker, logger *zerolog.Logger) *FailoverLocker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverLocker{primary: primary, fallback: fallback, logger: logger}
}

func (f *FailoverLocker) Lock(ctx context.Context, key string) (func(), error) {
	if !f.usePrimary() {
		metrics.IncLockFallback()
		return f.fallback.Lock(ctx, key)
	}

	unlock, err := f.primary.Lock(ctx, key)
	if err == nil {
		if f.isDown.CompareAndSwap(true, false) {
			f.logger.Info().Msg("lock backend recovered, switching back to primary")
		}
		return unlock, nil
	}
	// Contention and caller cancellation are not backend failures.
	if errors.Is(err, model.ErrLockTimeout) || ctx.Err() != nil {
		return nil, err
	}

	f.markDown(err)
	metrics.IncLockFallback()
	return f.fallback.Lock(ctx, key)
}

// Degraded reports whether the fallback is in use.
func (f *FailoverLocker) Degraded() bool {
	return f.isDown.Load()
}

func (f *FailoverLocker) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) < recheckInterval {
		return false
	}
	f.lastCheck = time.Now()
	return true
}

func (f *FailoverLocker) markDown(err error) {
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
	if !f.isDown.Swap(true) {
		f.logger.Warn().Err(err).Msg("lock backend failed, using in-process fallback")
	}
}
