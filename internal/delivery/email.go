package delivery

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	apperrors "github.com/jwalitptl/farm-calendar/pkg/errors"
)

const emailSubject = "Your farming calendar reminder"

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers reminders over SMTP.
type EmailSender struct {
	dialer dialer
	from   string
}

func NewEmailSender(host string, port int, username, password, from string) *EmailSender {
	return &EmailSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *EmailSender) Send(ctx context.Context, to, body string) error {
	// gomail has no context support; honour cancellation before dialing
	if err := ctx.Err(); err != nil {
		return apperrors.DeliveryFailure(ChannelEmail, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", emailSubject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return apperrors.DeliveryFailure(ChannelEmail, fmt.Errorf("smtp send to %s: %w", to, err))
	}
	return nil
}
