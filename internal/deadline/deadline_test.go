package deadline

import (
	"context"
	"errors"
	"testing"
	"time"

	"seatgrab/internal/components/chrono"

	"github.com/stretchr/testify/require"
)

func TestWaitUntilRealClock(t *testing.T) {
	if testing.Short() {
		t.Skip("waits two seconds")
	}

	s := NewScheduler(chrono.NewStandardTime())
	ticks := 0
	start := time.Now()
	err := s.WaitUntil(context.Background(), start.Add(2*time.Second), func(string) {
		ticks++
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.GreaterOrEqual(t, elapsed, 2*time.Second)
	require.Less(t, elapsed, 2200*time.Millisecond)
	require.GreaterOrEqual(t, ticks, 1)
	require.LessOrEqual(t, ticks, 5)
}

func TestWaitUntilImmediate(t *testing.T) {
	clock := chrono.NewFakeTime(time.Date(2024, 5, 1, 21, 48, 0, 0, chrono.Shanghai()))
	s := NewScheduler(clock)

	called := false
	require.NoError(t, s.WaitUntil(context.Background(), time.Time{}, func(string) { called = true }))
	require.NoError(t, s.WaitUntil(context.Background(), clock.Now().Add(-time.Minute), func(string) { called = true }))
	require.False(t, called)
	require.Empty(t, clock.Sleeps())
}

func TestWaitUntilSleepsAreClipped(t *testing.T) {
	start := time.Date(2024, 5, 1, 21, 47, 0, 0, chrono.Shanghai())
	clock := chrono.NewFakeTime(start)
	s := NewScheduler(clock)

	target := start.Add(3 * time.Second)
	require.NoError(t, s.WaitUntil(context.Background(), target, nil))

	require.Equal(t, target, clock.Now())
	sleeps := clock.Sleeps()
	require.NotEmpty(t, sleeps)
	require.Equal(t, MaxSleep, sleeps[0])
	for i, d := range sleeps {
		require.LessOrEqual(t, d, MaxSleep)
		if i < len(sleeps)-1 {
			require.GreaterOrEqual(t, d, MinSleep)
		}
	}
}

func TestWaitUntilCancelled(t *testing.T) {
	s := NewScheduler(chrono.NewStandardTime())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.WaitUntil(ctx, time.Now().Add(time.Hour), nil)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSleepFor(t *testing.T) {
	table := []struct {
		remaining time.Duration
		expected  time.Duration
	}{
		{remaining: 10 * time.Second, expected: MaxSleep},
		{remaining: 500 * time.Millisecond, expected: 50 * time.Millisecond},
		{remaining: 20 * time.Millisecond, expected: MinSleep},
		{remaining: 3 * time.Millisecond, expected: 3 * time.Millisecond},
	}
	for _, row := range table {
		require.Equal(t, row.expected, sleepFor(row.remaining), row.remaining.String())
	}
}

func TestParseClock(t *testing.T) {
	loc := chrono.Shanghai()
	now := time.Date(2024, 5, 1, 20, 0, 0, 0, loc)
	window, err := ParseWindow("19:48:00", "23:59:59")
	require.NoError(t, err)

	instant, err := ParseClock("21:48:00", now, &window)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 5, 1, 21, 48, 0, 0, loc), instant)

	instant, err = ParseClock("19:59:57", now, nil)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 5, 1, 19, 59, 57, 0, loc), instant)

	_, err = ParseClock("07:00:00", now, nil)
	require.ErrorIs(t, err, ErrPast)

	_, err = ParseClock("08:00:00", time.Date(2024, 5, 1, 7, 0, 0, 0, loc), &window)
	require.ErrorIs(t, err, ErrOutsideWindow)

	for _, bad := range []string{"21:48", "9:00:00", "25:00:00", "ab:cd:ef"} {
		_, err = ParseClock(bad, now, nil)
		require.ErrorIs(t, err, ErrFormat, bad)
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("19:48:00", "23:59:59")
	require.NoError(t, err)
	require.Equal(t, "19:48:00 - 23:59:59", w.String())

	_, err = ParseWindow("23:00:00", "19:00:00")
	require.Error(t, err)
}
