// Package email delivers applicant notifications over SMTP.
package email

import (
	"context"
	"fmt"

	"creditflow-backend/internal/notify"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Sender is the part of gomail.Dialer the mailer needs.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPMailer struct {
	sender Sender
	from   string
}

var _ notify.Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(host string, port int, user, pass, from string) *SMTPMailer {
	return &SMTPMailer{sender: gomail.NewDialer(host, port, user, pass), from: from}
}

func NewSMTPMailerWithSender(s Sender, from string) *SMTPMailer {
	return &SMTPMailer{sender: s, from: from}
}

func (s *SMTPMailer) message(m notify.Mail) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	if m.ToName != "" {
		msg.SetAddressHeader("To", m.To, m.ToName)
	} else {
		msg.SetHeader("To", m.To)
	}
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/html", m.Body)
	return msg
}

// Send dials per message. gomail has no context support, so ctx is only
// checked before dialing.
func (s *SMTPMailer) Send(ctx context.Context, m notify.Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sender.DialAndSend(s.message(m)); err != nil {
		return fmt.Errorf("send email to %s: %w", m.To, err)
	}
	return nil
}

// LogMailer only logs. Used when no SMTP host is configured.
type LogMailer struct {
	log *zap.Logger
}

var _ notify.Mailer = LogMailer{}

func NewLogMailer(log *zap.Logger) LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return LogMailer{log: log}
}

func (l LogMailer) Send(_ context.Context, m notify.Mail) error {
	l.log.Info("email (not sent, no SMTP configured)",
		zap.String("to", m.To), zap.String("subject", m.Subject))
	return nil
}
