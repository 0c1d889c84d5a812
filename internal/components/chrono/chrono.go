package chrono

import (
	"context"
	"time"
)

// API is the interface that anything depending on the system clock should use.
type API interface {
	// Now returns the current time in the portal's timezone (Asia/Shanghai).
	Now() time.Time
	Location() *time.Location
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

type StandardImpl struct {
	location *time.Location
}

func NewStandardImpl() StandardImpl {
	location, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		location = time.FixedZone("CST", 8*60*60)
	}
	return StandardImpl{location: location}
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

func (s StandardImpl) Sleep(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

// Sleep is a context aware time.Sleep.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitUntil blocks until the clock reaches t, checking every `step`.
// It polls instead of sleeping once so that system clock adjustments
// made while waiting are picked up.
func WaitUntil(ctx context.Context, clock API, t time.Time, step time.Duration) error {
	if step <= 0 {
		step = 500 * time.Millisecond
	}
	for {
		remaining := t.Sub(clock.Now())
		if remaining <= 0 {
			return nil
		}
		err := clock.Sleep(ctx, min(step, remaining))
		if err != nil {
			return err
		}
	}
}
