package host

import (
	"context"
	"time"

	"github.com/wippyai/wasm-journal/wire"
)

// Clock supplies the time sources poll_oneoff waits on.
type Clock interface {
	// Now reads clock id in nanoseconds. ok is false for clocks the host
	// does not provide.
	Now(id wire.ClockID) (now wire.Timestamp, ok bool)
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock reads the host's wall and monotonic clocks.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a SystemClock whose monotonic clock starts at
// zero now.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Now(id wire.ClockID) (wire.Timestamp, bool) {
	switch id {
	case wire.ClockRealtime:
		return wire.Timestamp(time.Now().UnixNano()), true
	case wire.ClockMonotonic:
		return wire.Timestamp(time.Since(c.start).Nanoseconds()), true
	default:
		return 0, false
	}
}

func (c *SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
