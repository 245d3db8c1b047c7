// Package credential provides the session cookie an operation runs with. How the cookie is
// captured is someone else's job, the capture helper only hands it over through a plain text file.
package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"seatgrab/internal/components/chrono"
	"seatgrab/internal/components/telemetry"
)

const (
	report_wait_read = "wait.read"
)

var ErrMalformed = errors.New("malformed credential")

// ErrTimeout is returned by WaitForUpdate when the file never changed.
var ErrTimeout = errors.New("timed out waiting for a new credential")

// Source returns the cookie an operation should use.
type Source interface {
	Credential(ctx context.Context) (string, error)
}

// Validate trims a cookie and checks it looks like `name=value`.
func Validate(cookie string) (string, error) {
	cookie = strings.TrimSpace(cookie)
	if cookie == "" || !strings.Contains(cookie, "=") {
		return "", ErrMalformed
	}
	return cookie, nil
}

// Static is a cookie supplied directly by the operator.
type Static string

func (s Static) Credential(ctx context.Context) (string, error) {
	return Validate(string(s))
}

// File reads the cookie the capture helper left at Path.
type File struct {
	Path string
}

func (f File) Credential(ctx context.Context) (string, error) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return "", err
	}
	cookie, err := Validate(string(content))
	if err != nil {
		return "", fmt.Errorf("%s: %w", f.Path, err)
	}
	return cookie, nil
}

// Waiter polls a cookie file until the capture helper writes a new, well formed cookie into it.
type Waiter struct {
	Path     string
	Timeout  time.Duration
	Interval time.Duration

	Clock chrono.TimeAPI
	Tel   telemetry.API
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// WaitForUpdate blocks until the file's modification time moves past the one it had when the
// call started and the new content is a valid cookie. A malformed write is skipped and the wait
// continues. `onTick` may be nil.
func (w Waiter) WaitForUpdate(ctx context.Context, onTick func(remaining time.Duration)) (string, error) {
	tel := telemetry.NewScopedAPI("credential", w.Tel)
	last := modTime(w.Path)
	deadline := w.Clock.Now().Add(w.Timeout)

	for {
		current := modTime(w.Path)
		if current.After(last) {
			last = current
			cookie, err := File{Path: w.Path}.Credential(ctx)
			if err == nil {
				return cookie, nil
			}
			tel.ReportWarning(report_wait_read, err)
		}

		remaining := deadline.Sub(w.Clock.Now())
		if remaining <= 0 {
			return "", ErrTimeout
		}
		if onTick != nil {
			onTick(remaining)
		}
		err := w.Clock.Sleep(ctx, min(w.Interval, remaining))
		if err != nil {
			return "", err
		}
	}
}

// Waiting adapts a Waiter into a Source.
type Waiting struct {
	Waiter Waiter
}

func (s Waiting) Credential(ctx context.Context) (string, error) {
	return s.Waiter.WaitForUpdate(ctx, nil)
}
