package deadline

import (
	"context"
	"fmt"
	"time"

	"seatgrab/internal/components/assert"
	"seatgrab/internal/components/chrono"

	"golang.org/x/time/rate"
)

const (
	MinSleep     = 5 * time.Millisecond
	MaxSleep     = 100 * time.Millisecond
	TickInterval = 500 * time.Millisecond
)

// Scheduler blocks callers until a wall-clock instant with adaptive polling: it sleeps a tenth of
// the remaining time clipped to [MinSleep, MaxSleep], and never past the instant itself.
type Scheduler struct {
	clock chrono.TimeAPI
}

func NewScheduler(clock chrono.TimeAPI) Scheduler {
	assert.NotNil(clock)
	return Scheduler{clock: clock}
}

// WaitUntil returns once `instant` has been reached. A zero or past instant returns immediately.
// `onTick` may be nil, otherwise it receives a countdown at most once per TickInterval.
// A done `ctx` ends the wait early with the context's error.
func (s Scheduler) WaitUntil(ctx context.Context, instant time.Time, onTick func(countdown string)) error {
	if instant.IsZero() {
		return nil
	}

	ticker := rate.Sometimes{Interval: TickInterval}
	for {
		remaining := instant.Sub(s.clock.Now())
		if remaining <= 0 {
			return nil
		}
		if onTick != nil {
			ticker.Do(func() {
				onTick(fmt.Sprintf("%.1f seconds until the scheduled time...", remaining.Seconds()))
			})
		}

		err := s.clock.Sleep(ctx, sleepFor(remaining))
		if err != nil {
			return err
		}
	}
}

func sleepFor(remaining time.Duration) time.Duration {
	d := remaining / 10
	if d < MinSleep {
		d = MinSleep
	}
	if d > MaxSleep {
		d = MaxSleep
	}
	if d > remaining {
		d = remaining
	}
	return d
}
