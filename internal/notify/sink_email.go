package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"guardian/internal/platform/config"
)

// Dialer is the part of gomail.Dialer the email sink uses.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSink sends notifications over SMTP. Legal escalations go to the
// configured legal mailbox; other kinds need an Email on the notification.
type EmailSink struct {
	dialer  Dialer
	from    string
	legalTo string
}

// NewEmailSink returns nil when no SMTP host is configured.
func NewEmailSink(cfg config.SMTPConfig) *EmailSink {
	if cfg.Host == "" {
		return nil
	}
	return NewEmailSinkWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, cfg.LegalTo)
}

func NewEmailSinkWithDialer(d Dialer, from, legalTo string) *EmailSink {
	return &EmailSink{dialer: d, from: from, legalTo: legalTo}
}

func (s *EmailSink) Send(ctx context.Context, n Notification) error {
	to := n.Email
	if n.IsLegal() {
		to = s.legalTo
	}
	if to == "" {
		// Account-addressed notifications are delivered by the event sinks.
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", n.Subject)
	m.SetHeader("X-Guardian-Reference", n.ReferenceID)
	m.SetBody("text/plain", n.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send %s email: %w", n.Kind, err)
	}
	return nil
}
