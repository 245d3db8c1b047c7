// Package progress is the one-way channel an operation narrates itself through. Sinks are
// best-effort: nothing a sink does may change how an operation proceeds.
package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"seatgrab/internal/components/telemetry"
	"seatgrab/internal/outcome"
)

const report_sink_deliver = "sink.deliver"

// Event is one line of narration, Operation correlates events of the same operation when
// several operations share a sink.
type Event struct {
	Operation string
	Text      string
}

type Sink interface {
	Emit(event Event)
	EmitFinal(operation string, result outcome.Outcome)
}

// Discard drops everything.
type Discard struct{}

func (Discard) Emit(Event) {}

func (Discard) EmitFinal(string, outcome.Outcome) {}

// Func adapts plain callbacks into a Sink, either callback may be nil.
type Func struct {
	OnEvent func(Event)
	OnFinal func(operation string, result outcome.Outcome)
}

func (f Func) Emit(event Event) {
	if f.OnEvent != nil {
		f.OnEvent(event)
	}
}

func (f Func) EmitFinal(operation string, result outcome.Outcome) {
	if f.OnFinal != nil {
		f.OnFinal(operation, result)
	}
}

// Final is a terminal result as seen by a Recorder.
type Final struct {
	Operation string
	Outcome   outcome.Outcome
}

// Recorder keeps everything in memory in emission order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	finals []Final
}

func (r *Recorder) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) EmitFinal(operation string, result outcome.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finals = append(r.finals, Final{Operation: operation, Outcome: result})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Texts returns the text of every event in order.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Text
	}
	return out
}

func (r *Recorder) Finals() []Final {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Final, len(r.finals))
	copy(out, r.finals)
	return out
}

// Console writes narration as plain lines.
type Console struct {
	w  io.Writer
	mu sync.Mutex
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Emit(event Event) {
	text := strings.TrimSpace(strings.ReplaceAll(event.Text, "\r", ""))
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, text)
}

func (c *Console) EmitFinal(_ string, result outcome.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	banner := strings.Repeat("*", 30)
	fmt.Fprintf(c.w, "%s\n%s\n%s\n", banner, result, banner)
}

// Logger writes narration to a slog logger.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return Logger{logger: logger}
}

func (l Logger) Emit(event Event) {
	l.logger.Info(event.Text, "operation", event.Operation)
}

func (l Logger) EmitFinal(operation string, result outcome.Outcome) {
	level := slog.LevelInfo
	if !result.Ok() {
		level = slog.LevelWarn
	}
	l.logger.Log(
		context.Background(), level, "operation finished",
		"operation", operation,
		"outcome", result.Kind.String(),
		"message", result.Message,
		"attempts", result.Attempts,
	)
}

// Multi fans every call out to each sink in order. A sink that panics is reported and skipped,
// the remaining sinks still receive the call.
type Multi struct {
	sinks []Sink
	tel   telemetry.API
}

func NewMulti(tel telemetry.API, sinks ...Sink) Multi {
	return Multi{sinks: sinks, tel: telemetry.NewScopedAPI("progress", tel)}
}

func (m Multi) Emit(event Event) {
	for _, s := range m.sinks {
		deliver(m.tel, func() { s.Emit(event) })
	}
}

func (m Multi) EmitFinal(operation string, result outcome.Outcome) {
	for _, s := range m.sinks {
		deliver(m.tel, func() { s.EmitFinal(operation, result) })
	}
}

// Guard wraps a single sink so that it can never take its caller down with it.
func Guard(tel telemetry.API, sink Sink) Sink {
	return NewMulti(tel, sink)
}

func deliver(tel telemetry.API, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			tel.ReportWarning(report_sink_deliver, fmt.Errorf("sink panicked: %v", r))
		}
	}()
	fn()
}
