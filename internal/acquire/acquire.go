// Package acquire runs one timed seat acquisition: wait for the scheduled instant, then repeat
// admission, select, acquire and confirm until the outcome is terminal or attempts run out.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seatgrab/internal/components/assert"
	"seatgrab/internal/components/chrono"
	"seatgrab/internal/components/telemetry"
	"seatgrab/internal/credential"
	"seatgrab/internal/directory"
	"seatgrab/internal/gate"
	"seatgrab/internal/outcome"
	"seatgrab/internal/platforms/seatlib"
	"seatgrab/internal/progress"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("acquire")
var meter = otel.Meter("acquire")

var attemptCounter, _ = meter.Int64Counter(
	"seatgrab.acquire.attempts",
	metric.WithDescription("The total amount of acquisition attempts issued."),
)
var outcomeCounter, _ = meter.Int64Counter(
	"seatgrab.acquire.outcomes",
	metric.WithDescription("The total amount of finished operations by outcome kind."),
)

const (
	report_orchestrator_confirm = "orchestrator.confirm"
	report_orchestrator_run     = "orchestrator.run"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultSelectDelay = 100 * time.Millisecond
)

// Gate is the admission queue.
type Gate interface {
	JoinQueue(ctx context.Context, cookie string, narrate gate.Narrate) gate.Admission
}

// API is the reservation service's graphql surface.
//
// note: fault injection point
type API interface {
	SelectLibrary(ctx context.Context, cookie, libID string) (seatlib.Response, error)
	Acquire(ctx context.Context, cookie string, mode seatlib.Mode, libID, seatKey string) (seatlib.Response, error)
	Confirm(ctx context.Context, cookie string) (seatlib.Response, error)
}

// Scheduler blocks until an instant.
type Scheduler interface {
	WaitUntil(ctx context.Context, instant time.Time, onTick func(countdown string)) error
}

// Request is the input of one operation.
type Request struct {
	Mode seatlib.Mode
	// SessionToken is the cookie to run with, when empty the Orchestrator's credential source is
	// asked for one.
	SessionToken string
	// ResourceID is the room id.
	ResourceID string
	// SlotKey is the seat key within the room.
	SlotKey string
	// ExecuteAt is when the first attempt starts, the zero value means right away.
	ExecuteAt time.Time
}

type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
	// SelectDelay is the pause between the select call and the acquisition call.
	SelectDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.SelectDelay < 0 {
		c.SelectDelay = 0
	}
	return c
}

type Dependencies struct {
	Gate      Gate
	API       API
	Scheduler Scheduler
	Clock     chrono.TimeAPI
	Sink      progress.Sink
	Tel       telemetry.API
	// Directory is only used to name rooms and seats in narration, it may be the zero value.
	Directory directory.Directory
	// Credentials may be nil when every Request carries its own SessionToken.
	Credentials credential.Source
}

// Orchestrator runs acquisitions. It holds no per-operation state, one Orchestrator may serve
// many concurrent operations as long as its dependencies allow it.
type Orchestrator struct {
	config Config
	deps   Dependencies
	tel    telemetry.API
}

func NewOrchestrator(config Config, deps Dependencies) Orchestrator {
	assert.NotNil(deps.Gate)
	assert.NotNil(deps.API)
	assert.NotNil(deps.Scheduler)
	assert.NotNil(deps.Clock)
	assert.NotNil(deps.Tel)
	if deps.Sink == nil {
		deps.Sink = progress.Discard{}
	}
	deps.Sink = progress.Guard(deps.Tel, deps.Sink)

	return Orchestrator{
		config: config.withDefaults(),
		deps:   deps,
		tel:    telemetry.NewScopedAPI("acquire", deps.Tel),
	}
}

// operation is the state of a single Run.
type operation struct {
	o      Orchestrator
	id     string
	req    Request
	cookie string
	state  State
}

func (op *operation) say(format string, args ...any) {
	op.o.deps.Sink.Emit(progress.Event{
		Operation: op.id,
		Text:      fmt.Sprintf(format, args...),
	})
}

func (op *operation) transition(next State) {
	if next == op.state {
		return
	}
	op.say("[%s -> %s]", op.state, next)
	op.state = next
}

// Run performs one operation to completion and returns its terminal outcome. Every step is
// narrated to the sink, the final outcome is emitted last.
func (o Orchestrator) Run(ctx context.Context, req Request) outcome.Outcome {
	op := &operation{
		o:     o,
		id:    uuid.NewString(),
		req:   req,
		state: Idle,
	}

	ctx, span := tracer.Start(ctx, "run")
	defer span.End()
	span.SetAttributes(
		attribute.String("acquire.operation", op.id),
		attribute.String("acquire.mode", req.Mode.String()),
		attribute.String("acquire.resource", req.ResourceID),
	)

	result := op.run(ctx)

	span.SetAttributes(
		attribute.String("acquire.outcome", result.Kind.String()),
		attribute.Int("acquire.attempts", result.Attempts),
	)
	if !result.Ok() {
		span.SetStatus(codes.Error, result.String())
	}
	outcomeCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", result.Kind.String())))

	op.transition(terminalState(result.Kind))
	o.deps.Sink.EmitFinal(op.id, result)
	return result
}

func (op *operation) run(ctx context.Context) outcome.Outcome {
	req := op.req
	if !req.Mode.Valid() {
		op.say("invalid mode %d, expected %d (reserve for tomorrow) or %d (grab now)", int(req.Mode), int(seatlib.ModeReserve), int(seatlib.ModeGrab))
		return outcome.Fatal(fmt.Sprintf("invalid mode %d", int(req.Mode)))
	}
	if req.ResourceID == "" || req.SlotKey == "" {
		op.say("a room id and a seat key are required")
		return outcome.Fatal("missing room id or seat key")
	}

	cookie, failure := op.credential(ctx)
	if failure != nil {
		return *failure
	}
	op.cookie = cookie

	room, seat := op.o.deps.Directory.Describe(req.ResourceID, req.SlotKey)
	op.say("operation %s: %s seat %s in %s", op.id, req.Mode, seat, room)

	op.transition(Waiting)
	if !req.ExecuteAt.IsZero() {
		op.say("waiting until %s", req.ExecuteAt.Format("2006-01-02 15:04:05"))
	}
	err := op.o.deps.Scheduler.WaitUntil(ctx, req.ExecuteAt, func(countdown string) {
		op.say("%s", countdown)
	})
	if err != nil {
		return cancelled(err, 0)
	}
	op.say("scheduled time reached, starting")

	var last outcome.Outcome
	maxAttempts := op.o.config.MaxAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		op.transition(Attempting)
		op.say("attempt %d/%d", attempt, maxAttempts)
		attemptCounter.Add(ctx, 1)

		last = op.attempt(ctx, attempt)
		last.Attempts = attempt
		if ctx.Err() != nil && !last.Kind.Terminal() {
			return cancelled(ctx.Err(), attempt)
		}
		if last.Kind.Terminal() {
			return last
		}

		op.say("attempt %d did not go through: %s", attempt, last.Message)
		if attempt < maxAttempts {
			op.say("retrying in %s", op.o.config.RetryDelay)
			err := op.o.deps.Clock.Sleep(ctx, op.o.config.RetryDelay)
			if err != nil {
				return cancelled(err, attempt)
			}
		}
	}

	op.say("all %d attempts failed", maxAttempts)
	result := outcome.Exhausted(last.Message)
	result.Attempts = maxAttempts
	return result
}

func (op *operation) credential(ctx context.Context) (string, *outcome.Outcome) {
	if op.req.SessionToken != "" {
		cookie, err := credential.Validate(op.req.SessionToken)
		if err != nil {
			op.say("the session cookie does not look like name=value")
			result := outcome.Invalid(err.Error())
			return "", &result
		}
		return cookie, nil
	}

	if op.o.deps.Credentials == nil {
		op.say("no session cookie was given")
		result := outcome.Fatal("no session cookie")
		return "", &result
	}
	cookie, err := op.o.deps.Credentials.Credential(ctx)
	if errors.Is(err, credential.ErrMalformed) {
		op.say("the session cookie does not look like name=value")
		result := outcome.Invalid(err.Error())
		return "", &result
	}
	if err != nil {
		op.o.tel.ReportWarning(report_orchestrator_run, err)
		op.say("could not obtain a session cookie: %v", err)
		result := outcome.Fatal(err.Error())
		return "", &result
	}
	return cookie, nil
}

// attempt is one pass of admission, select, acquire and confirm. It returns a transient outcome
// when the attempt may be retried.
func (op *operation) attempt(ctx context.Context, n int) outcome.Outcome {
	ctx, span := tracer.Start(ctx, "attempt")
	defer span.End()
	span.SetAttributes(attribute.Int("acquire.attempt", n))

	deps := op.o.deps
	req := op.req

	admission := deps.Gate.JoinQueue(ctx, op.cookie, func(text string) {
		op.say("%s", text)
	})
	if admission.Result == gate.SessionInvalid {
		op.say("the admission queue rejected the session: %s", admission.Reason)
		return outcome.Invalid(admission.Reason)
	}
	op.say("admission: %s, continuing", admission.Result)
	if ctx.Err() != nil {
		return outcome.Transient("cancelled")
	}

	selected, err := deps.API.SelectLibrary(ctx, op.cookie, req.ResourceID)
	if err != nil {
		op.say("select room failed: %v", err)
		return transportFailure("select room", err)
	}
	op.say("select room: status %d", selected.Status)

	err = deps.Clock.Sleep(ctx, op.o.config.SelectDelay)
	if err != nil {
		return outcome.Transient("cancelled")
	}

	acquired, err := deps.API.Acquire(ctx, op.cookie, req.Mode, req.ResourceID, req.SlotKey)
	if err != nil {
		op.say("%s failed: %v", req.Mode, err)
		return transportFailure(req.Mode.String(), err)
	}
	op.say("%s: status %d: %s", req.Mode, acquired.Status, excerptOf(acquired.Body))

	confirmed := op.confirm(ctx)

	result := evaluate(req.Mode, acquired, selected.Body, confirmed)
	span.SetAttributes(attribute.String("acquire.result", result.Kind.String()))
	op.say("result: %s", result.Kind)
	return result
}

// confirm lists the session's reservations for context, nothing it does affects the outcome.
func (op *operation) confirm(ctx context.Context) string {
	res, err := op.o.deps.API.Confirm(ctx, op.cookie)
	if err != nil {
		op.o.tel.ReportDebug(report_orchestrator_confirm, err)
		op.say("reservation check failed: %v", err)
		return ""
	}

	rows, err := seatlib.DecodePrereservations(res.Body)
	switch {
	case err != nil:
		op.say("reservation check: status %d: %s", res.Status, excerptOf(res.Body))
	case len(rows) == 0:
		op.say("reservation check: no reservations")
	default:
		for _, row := range rows {
			op.say("reservation check: %s", row)
		}
	}
	return res.Body
}

func cancelled(err error, attempts int) outcome.Outcome {
	result := outcome.Fatal(fmt.Sprintf("cancelled: %v", err))
	result.Attempts = attempts
	return result
}
