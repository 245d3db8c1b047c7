// Package gate joins the advisory admission queue the reservation service runs over a websocket
// before the authoritative graphql calls.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"seatgrab/internal/classify"
	"seatgrab/internal/components/assert"
	"seatgrab/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("gate")

const (
	report_client_close = "client.close"
)

const (
	DefaultNamespace      = "prereserve/queue"
	DefaultConnectTimeout = 10 * time.Second
	DefaultReceiveTimeout = 15 * time.Second
)

// Result is how the queue answered a join.
type Result int

const (
	// Undetermined means no conclusive answer arrived, callers proceed anyway.
	Undetermined Result = iota
	Admitted
	AlreadySatisfied
	SessionInvalid
)

func (r Result) String() string {
	switch r {
	case Undetermined:
		return "undetermined"
	case Admitted:
		return "admitted"
	case AlreadySatisfied:
		return "already_satisfied"
	case SessionInvalid:
		return "session_invalid"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// Admission is the result of a join together with the text that decided it.
type Admission struct {
	Result Result
	Reason string
}

// admittedPhrases are matched against the queue's own `msg` field on top of the already-succeeded
// keyword set.
var admittedPhrases = []string{
	"排队成功",
	"当前已经在队列中",
}

// Narrate receives the human readable progress of a join.
type Narrate func(text string)

type Options struct {
	Url    string
	Header http.Header
	// Namespace is the `ns` field of the join message.
	Namespace      string
	ConnectTimeout time.Duration
	// ReceiveTimeout bounds the whole receive loop, not a single read.
	ReceiveTimeout time.Duration
}

type Client struct {
	dialer Dialer
	opts   Options
	tel    telemetry.API
}

func NewClient(dialer Dialer, opts Options, tel telemetry.API) *Client {
	assert.NotNil(dialer)
	assert.NotEmptyStr(opts.Url)
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = DefaultReceiveTimeout
	}
	return &Client{
		dialer: dialer,
		opts:   opts,
		tel:    telemetry.NewScopedAPI("gate", tel),
	}
}

type joinMessage struct {
	Namespace string `json:"ns"`
	Msg       string `json:"msg"`
}

type pushMessage struct {
	Msg *string `json:"msg"`
}

// JoinQueue opens one connection, sends the join message and waits for a conclusive push. Only a
// session-invalid answer is ever meant to stop the caller.
func (c *Client) JoinQueue(ctx context.Context, cookie string, narrate Narrate) Admission {
	ctx, span := tracer.Start(ctx, "join-queue", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if narrate == nil {
		narrate = func(string) {}
	}
	admission := c.join(ctx, cookie, narrate)
	span.SetAttributes(
		attribute.String("gate.result", admission.Result.String()),
		attribute.String("gate.reason", admission.Reason),
	)
	return admission
}

func (c *Client) join(ctx context.Context, cookie string, narrate Narrate) Admission {
	header := c.opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Cookie", cookie)

	narrate("connecting to the admission queue...")
	dialCtx, cancelDial := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	conn, err := c.dialer.Dial(dialCtx, c.opts.Url, header)
	cancelDial()
	if err != nil {
		narrate(fmt.Sprintf("could not connect to the admission queue: %v", err))
		return failure(err)
	}
	defer func() {
		err := conn.Close()
		if err != nil {
			c.tel.ReportDebug(report_client_close, err)
		}
		narrate("admission queue connection closed")
	}()

	payload, err := json.Marshal(joinMessage{Namespace: c.opts.Namespace})
	if err != nil {
		return Admission{Result: Undetermined, Reason: err.Error()}
	}

	recvCtx, cancelRecv := context.WithTimeout(ctx, c.opts.ReceiveTimeout)
	defer cancelRecv()

	err = conn.Write(recvCtx, string(payload))
	if err != nil {
		narrate(fmt.Sprintf("could not send the queue join message: %v", err))
		return failure(err)
	}
	narrate("joined the admission queue, waiting for an answer...")

	for {
		text, err := conn.Read(recvCtx)
		if err != nil {
			if recvCtx.Err() != nil && ctx.Err() == nil {
				narrate(fmt.Sprintf("no conclusive answer from the admission queue within %s, continuing", c.opts.ReceiveTimeout))
				return Admission{Result: Undetermined, Reason: "receive timeout"}
			}
			narrate(fmt.Sprintf("admission queue connection dropped: %v", err))
			return failure(err)
		}

		message := messageOf(text)
		narrate(fmt.Sprintf("admission queue says: %s", message))

		result, decided := interpret(message, text)
		if decided {
			return Admission{Result: result, Reason: message}
		}
	}
}

// messageOf returns the `msg` field of a push, or the whole push when it has none.
func messageOf(text string) string {
	var push pushMessage
	err := json.Unmarshal([]byte(text), &push)
	if err != nil || push.Msg == nil {
		return text
	}
	return *push.Msg
}

func interpret(message, raw string) (Result, bool) {
	signals := classify.Scan(message, raw)
	if signals.Has(classify.SessionInvalid) {
		return SessionInvalid, true
	}
	if strings.EqualFold(strings.TrimSpace(message), "ok") {
		return Admitted, true
	}
	for _, phrase := range admittedPhrases {
		if strings.Contains(message, phrase) || strings.Contains(raw, phrase) {
			return Admitted, true
		}
	}
	if signals.Has(classify.AlreadySucceeded) {
		return AlreadySatisfied, true
	}
	return Undetermined, false
}

func failure(err error) Admission {
	if errors.Is(err, context.Canceled) {
		return Admission{Result: Undetermined, Reason: "cancelled"}
	}
	if classify.Match(err.Error()).Has(classify.SessionInvalid) {
		return Admission{Result: SessionInvalid, Reason: err.Error()}
	}
	return Admission{Result: Undetermined, Reason: err.Error()}
}
