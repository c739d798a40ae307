package mail

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer sends outbound email. Sends are fire-and-forget: callers log the
// returned error but do not fail the triggering operation on it.
type Mailer interface {
	Send(from, to, subject, body string) error
}

// SMTPMailer sends mail through a single SMTP relay.
type SMTPMailer struct {
	addr     string
	username string
	password string
	host     string
}

// NewSMTPMailer builds a mailer for addr ("host:port"). Username and
// password may be empty for unauthenticated relays.
func NewSMTPMailer(addr, username, password string) (*SMTPMailer, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("smtp addr required")
	}
	host := addr
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		host = addr[:i]
	}
	return &SMTPMailer{
		addr:     addr,
		username: strings.TrimSpace(username),
		password: password,
		host:     host,
	}, nil
}

// Send delivers one message.
func (m *SMTPMailer) Send(from, to, subject, body string) error {
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return fmt.Errorf("from and to addresses required")
	}
	msg := buildMessage(from, to, subject, body)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := smtp.SendMail(m.addr, auth, from, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return []byte(sb.String())
}

// sanitizeHeader strips CR/LF to prevent header injection.
func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	return strings.TrimSpace(v)
}

// NopMailer discards all messages (tests, local development).
type NopMailer struct{}

func (NopMailer) Send(_, _, _, _ string) error { return nil }
