package progress

import (
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"seatgrab/internal/components/telemetry"
	"seatgrab/internal/outcome"

	"github.com/jordan-wright/email"
)

const report_email_send = "email.send"

type EmailConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

func (c EmailConfig) Enabled() bool {
	return c.Server != "" && len(c.To) > 0
}

// Mailer delivers a composed email.
type Mailer interface {
	Send(mail *email.Email) error
}

type smtpMailer struct {
	config EmailConfig
}

// NewSmtpMailer sends through the configured smtp server, falling back to an unauthenticated send
// for servers that do not support AUTH.
func NewSmtpMailer(config EmailConfig) Mailer {
	return smtpMailer{config: config}
}

func (m smtpMailer) Send(mail *email.Email) error {
	addr := fmt.Sprintf("%s:%d", m.config.Server, m.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	return err
}

// EmailNotifier buffers the narration of each operation and mails it together with the final
// outcome once the operation ends.
type EmailNotifier struct {
	config EmailConfig
	mailer Mailer
	tel    telemetry.API

	mu     sync.Mutex
	traces map[string][]string
}

func NewEmailNotifier(config EmailConfig, mailer Mailer, tel telemetry.API) *EmailNotifier {
	return &EmailNotifier{
		config: config,
		mailer: mailer,
		tel:    telemetry.NewScopedAPI("progress", tel),
		traces: map[string][]string{},
	}
}

func (n *EmailNotifier) Emit(event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.traces[event.Operation] = append(n.traces[event.Operation], event.Text)
}

func (n *EmailNotifier) EmitFinal(operation string, result outcome.Outcome) {
	n.mu.Lock()
	trace := n.traces[operation]
	delete(n.traces, operation)
	n.mu.Unlock()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("seatgrab <%s>", n.config.EmailAddress)
	mail.To = n.config.To
	mail.Subject = fmt.Sprintf("seatgrab: %s", result.Kind)

	var body strings.Builder
	body.WriteString(result.String())
	body.WriteString("\n\n")
	for _, line := range trace {
		body.WriteString(line)
		body.WriteString("\n")
	}
	mail.Text = []byte(body.String())

	err := n.mailer.Send(mail)
	if err != nil {
		n.tel.ReportWarning(report_email_send, err, operation)
	}
}
