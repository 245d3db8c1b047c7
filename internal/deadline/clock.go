package deadline

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	ErrFormat        = errors.New("time must be formatted as HH:MM:SS")
	ErrOutsideWindow = errors.New("time is outside of the reservation window")
	ErrPast          = errors.New("time has already passed")
)

// PastTolerance is how far in the past a parsed time may be before it is rejected.
const PastTolerance = 5 * time.Second

var clockFormat = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)

func parseOffset(hhmmss string) (time.Duration, error) {
	if !clockFormat.MatchString(hhmmss) {
		return 0, fmt.Errorf("%w: %q", ErrFormat, hhmmss)
	}
	t, err := time.Parse("15:04:05", hhmmss)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrFormat, hhmmss)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

// Window is a daily span of wall-clock time, both ends inclusive.
type Window struct {
	Start time.Duration
	End   time.Duration
}

func ParseWindow(start, end string) (Window, error) {
	s, err := parseOffset(start)
	if err != nil {
		return Window{}, err
	}
	e, err := parseOffset(end)
	if err != nil {
		return Window{}, err
	}
	if e < s {
		return Window{}, fmt.Errorf("window end %s is before start %s", end, start)
	}
	return Window{Start: s, End: e}, nil
}

func (w Window) contains(offset time.Duration) bool {
	return offset >= w.Start && offset <= w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%s - %s", formatOffset(w.Start), formatOffset(w.End))
}

func formatOffset(d time.Duration) string {
	return time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Add(d).Format("15:04:05")
}

// ParseClock resolves "HH:MM:SS" to that time of `now`'s day in `now`'s location. When `window`
// is not nil the time must fall inside it. Times more than PastTolerance before `now` are rejected.
func ParseClock(hhmmss string, now time.Time, window *Window) (time.Time, error) {
	offset, err := parseOffset(hhmmss)
	if err != nil {
		return time.Time{}, err
	}
	if window != nil && !window.contains(offset) {
		return time.Time{}, fmt.Errorf("%w: %s not in %s", ErrOutsideWindow, hhmmss, window)
	}

	y, m, d := now.Date()
	instant := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Add(offset)
	if instant.Before(now.Add(-PastTolerance)) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrPast, instant.Format(time.DateTime))
	}
	return instant, nil
}
