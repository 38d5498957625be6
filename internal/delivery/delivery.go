package delivery

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/farm-calendar/internal/model"
	apperrors "github.com/jwalitptl/farm-calendar/pkg/errors"
	"github.com/jwalitptl/farm-calendar/pkg/logger"
)

// Channel names used in logs, metrics and errors.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// Sender delivers one message to one address. A nil error means the
// gateway accepted the message.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to, body string) error

func (f SenderFunc) Send(ctx context.Context, to, body string) error {
	return f(ctx, to, body)
}

// Destination is one resolved address for a subscription.
type Destination struct {
	Channel string
	Address string
}

var validate = validator.New()

// NormalizePhone strips formatting characters and validates E.164.
func NormalizePhone(phone string) (string, bool) {
	p := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(strings.TrimSpace(phone))
	if p == "" {
		return "", false
	}
	if validate.Var(p, "e164") != nil {
		return "", false
	}
	return p, true
}

func validEmail(email string) (string, bool) {
	e := strings.TrimSpace(email)
	if e == "" || validate.Var(e, "email") != nil {
		return "", false
	}
	return e, true
}

// Destinations resolves where a subscription's reminders go according to its
// notification preference. It fails with MissingContact when the preference
// leaves no usable address.
func Destinations(sub *model.Subscription) ([]Destination, error) {
	phone, phoneOK := NormalizePhone(sub.Farmer.Phone)
	email, emailOK := validEmail(sub.Farmer.Email)

	var out []Destination
	switch sub.Preference() {
	case model.PreferenceEmail:
		if !emailOK {
			return nil, apperrors.MissingContact("no valid email for subscription " + sub.ID.String())
		}
		out = append(out, Destination{Channel: ChannelEmail, Address: email})
	case model.PreferenceBoth:
		if phoneOK {
			out = append(out, Destination{Channel: ChannelSMS, Address: phone})
		}
		if emailOK {
			out = append(out, Destination{Channel: ChannelEmail, Address: email})
		}
		if len(out) == 0 {
			return nil, apperrors.MissingContact("no valid phone or email for subscription " + sub.ID.String())
		}
	default:
		if !phoneOK {
			return nil, apperrors.MissingContact("no valid phone for subscription " + sub.ID.String())
		}
		out = append(out, Destination{Channel: ChannelSMS, Address: phone})
	}
	return out, nil
}

// Dispatcher routes a reminder to the senders its destinations need.
type Dispatcher struct {
	senders map[string]Sender
	log     *logger.Logger
}

func NewDispatcher(sms, email Sender, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		senders: map[string]Sender{ChannelSMS: sms, ChannelEmail: email},
		log:     log,
	}
}

// Deliver sends body to every destination. The reminder counts as delivered
// when at least one channel accepted it; the channels that did are returned.
func (d *Dispatcher) Deliver(ctx context.Context, dests []Destination, body string) ([]string, error) {
	var (
		delivered []string
		errs      []error
	)

	for _, dest := range dests {
		sender, ok := d.senders[dest.Channel]
		if !ok || sender == nil {
			errs = append(errs, apperrors.DeliveryFailure(dest.Channel, errors.New("no sender configured")))
			continue
		}
		if err := sender.Send(ctx, dest.Address, body); err != nil {
			d.log.Warn("channel delivery failed", "channel", dest.Channel, "error", err.Error())
			errs = append(errs, err)
			continue
		}
		delivered = append(delivered, dest.Channel)
	}

	if len(delivered) > 0 {
		return delivered, nil
	}
	if len(errs) == 0 {
		return nil, apperrors.MissingContact("no destinations")
	}
	if len(errs) == 1 && errors.Is(errs[0], apperrors.ErrCodeDeliveryFailure) {
		return nil, errs[0]
	}
	channel := dests[0].Channel
	if len(dests) > 1 {
		channel = "all channels"
	}
	return nil, apperrors.DeliveryFailure(channel, errors.Join(errs...))
}
