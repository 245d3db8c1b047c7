package credential

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"seatgrab/internal/components/chrono"
	"seatgrab/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	table := []struct {
		input    string
		expected string
		err      error
	}{
		{input: "  Authorization=abc\n", expected: "Authorization=abc"},
		{input: "a=b; c=d", expected: "a=b; c=d"},
		{input: "", err: ErrMalformed},
		{input: "   ", err: ErrMalformed},
		{input: "no-equals-sign", err: ErrMalformed},
	}
	for _, row := range table {
		cookie, err := Validate(row.input)
		if row.err != nil {
			require.ErrorIs(t, err, row.err, row.input)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, row.expected, cookie)
	}

	cookie, err := Static(" x=y ").Credential(context.Background())
	require.NoError(t, err)
	require.Equal(t, "x=y", cookie)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest_cookie.txt")

	_, err := File{Path: path}.Credential(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	_, err = File{Path: path}.Credential(context.Background())
	require.ErrorIs(t, err, ErrMalformed)

	require.NoError(t, os.WriteFile(path, []byte("Authorization=abc\n"), 0o600))
	cookie, err := File{Path: path}.Credential(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Authorization=abc", cookie)
}

// writingClock rewrites the cookie file on a given sleep, standing in for the capture helper.
type writingClock struct {
	*chrono.FakeTime
	t       *testing.T
	path    string
	writes  map[int]string
	sleeps  int
	modTime time.Time
}

func (c *writingClock) Sleep(ctx context.Context, d time.Duration) error {
	err := c.FakeTime.Sleep(ctx, d)
	if err != nil {
		return err
	}
	c.sleeps++
	if content, ok := c.writes[c.sleeps]; ok {
		require.NoError(c.t, os.WriteFile(c.path, []byte(content), 0o600))
		c.modTime = c.modTime.Add(time.Minute)
		require.NoError(c.t, os.Chtimes(c.path, c.modTime, c.modTime))
	}
	return nil
}

func TestWaitForUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest_cookie.txt")
	require.NoError(t, os.WriteFile(path, []byte("Authorization=old"), 0o600))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, base, base))

	clock := &writingClock{
		FakeTime: chrono.NewFakeTime(base),
		t:        t,
		path:     path,
		modTime:  base,
		writes: map[int]string{
			2: "half written",
			4: "Authorization=new",
		},
	}
	ticks := 0
	cookie, err := Waiter{
		Path:     path,
		Timeout:  time.Minute,
		Interval: 2 * time.Second,
		Clock:    clock,
		Tel:      telemetry.NewSlogAPI(nil),
	}.WaitForUpdate(context.Background(), func(time.Duration) { ticks++ })

	require.NoError(t, err)
	require.Equal(t, "Authorization=new", cookie)
	require.Equal(t, 4, ticks)
}

func TestWaitForUpdateTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest_cookie.txt")
	clock := chrono.NewFakeTime(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	_, err := Waiter{
		Path:     path,
		Timeout:  5 * time.Second,
		Interval: 2 * time.Second,
		Clock:    clock,
		Tel:      telemetry.NewSlogAPI(nil),
	}.WaitForUpdate(context.Background(), nil)

	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, time.Second}, clock.Sleeps())
}

func TestWaitForUpdateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Waiting{Waiter: Waiter{
		Path:     filepath.Join(t.TempDir(), "latest_cookie.txt"),
		Timeout:  time.Minute,
		Interval: time.Second,
		Clock:    chrono.NewFakeTime(time.Now()),
		Tel:      telemetry.NewSlogAPI(nil),
	}}.Credential(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}
