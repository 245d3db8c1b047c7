package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"seatgrab/internal/components/telemetry"
	"seatgrab/internal/outcome"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

func TestRecorderKeepsOrder(t *testing.T) {
	var r Recorder
	r.Emit(Event{Operation: "a", Text: "one"})
	r.Emit(Event{Operation: "a", Text: "two"})
	r.EmitFinal("a", outcome.Success(""))

	require.Equal(t, []string{"one", "two"}, r.Texts())
	require.Len(t, r.Finals(), 1)
	require.Equal(t, outcome.Succeeded, r.Finals()[0].Outcome.Kind)
}

func TestMultiSurvivesPanickingSink(t *testing.T) {
	var r Recorder
	broken := Func{
		OnEvent: func(Event) { panic("listener disconnected") },
		OnFinal: func(string, outcome.Outcome) { panic("listener disconnected") },
	}
	m := NewMulti(telemetry.NewSlogAPI(nil), broken, &r)

	require.NotPanics(t, func() {
		m.Emit(Event{Text: "still delivered"})
		m.EmitFinal("op", outcome.Fatal("x"))
	})
	require.Equal(t, []string{"still delivered"}, r.Texts())
	require.Len(t, r.Finals(), 1)
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Emit(Event{Text: "  step 1\r  "})
	c.Emit(Event{Text: "   "})
	c.EmitFinal("op", outcome.Unavailable("已被占座"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, "step 1", lines[0])
	require.Contains(t, lines[2], "choose another one")
	require.Len(t, lines, 4)
}

type fakeMailer struct {
	sent []*email.Email
	err  error
}

func (m *fakeMailer) Send(mail *email.Email) error {
	m.sent = append(m.sent, mail)
	return m.err
}

func TestEmailNotifier(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewEmailNotifier(EmailConfig{
		Server:       "localhost",
		Port:         1025,
		EmailAddress: "bot@example.com",
		To:           []string{"alice@example.com"},
	}, mailer, telemetry.NewSlogAPI(nil))

	n.Emit(Event{Operation: "op-1", Text: "attempt 1/3"})
	n.Emit(Event{Operation: "op-2", Text: "unrelated"})
	n.EmitFinal("op-1", outcome.Success("ok"))

	require.Len(t, mailer.sent, 1)
	mail := mailer.sent[0]
	require.Equal(t, []string{"alice@example.com"}, mail.To)
	require.Equal(t, "seatgrab: succeeded", mail.Subject)
	require.Contains(t, string(mail.Text), "attempt 1/3")
	require.NotContains(t, string(mail.Text), "unrelated")
}

func TestEmailNotifierSendFailureIsSwallowed(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("connection refused")}
	n := NewEmailNotifier(EmailConfig{To: []string{"a@example.com"}}, mailer, telemetry.NewSlogAPI(nil))
	require.NotPanics(t, func() {
		n.EmitFinal("op", outcome.Invalid("验证失败"))
	})
}
