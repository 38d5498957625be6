package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/farm-calendar/pkg/errors"
	"github.com/jwalitptl/farm-calendar/pkg/messaging"
)

// QueueSender hands SMS to an external gateway worker through a broker list.
// Success means the message was queued, not that the handset received it.
type QueueSender struct {
	broker  messaging.Broker
	channel string
	now     func() time.Time
}

func NewQueueSender(broker messaging.Broker, channel string) *QueueSender {
	return &QueueSender{broker: broker, channel: channel, now: time.Now}
}

func (s *QueueSender) Send(ctx context.Context, to, body string) error {
	msg := messaging.OutboundSMS{
		ID:        uuid.NewString(),
		To:        to,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	if err := s.broker.Publish(ctx, s.channel, msg); err != nil {
		return apperrors.DeliveryFailure(ChannelSMS, err)
	}
	return nil
}
