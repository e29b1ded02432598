// Package mailer delivers transactional mail over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
)

// Sender delivers a plain-text message to a single recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail through a configured SMTP relay.
type SMTPSender struct {
	cfg Config
}

// NewSMTPSender creates a sender for the given relay.
func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s\r\n",
		s.cfg.From, to, subject, body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// LogSender is a stand-in used when SMTP is not configured; callers get a
// nil error and the message is dropped.
type LogSender struct {
	Logf func(format string, args ...any)
}

func (l *LogSender) Send(_ context.Context, to, subject, _ string) error {
	if l.Logf != nil {
		l.Logf("mail suppressed (no SMTP configured): to=%s subject=%q", to, subject)
	}
	return nil
}
