package delivery

import (
	"context"

	"github.com/jwalitptl/farm-calendar/pkg/logger"
)

// LogSender stands in for a gateway that has no credentials configured.
// Messages are written to the log and reported as sent.
type LogSender struct {
	channel string
	log     *logger.Logger
}

func NewLogSender(channel string, log *logger.Logger) *LogSender {
	return &LogSender{channel: channel, log: log}
}

func (s *LogSender) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info("[mock] would send reminder", "channel", s.channel, "to", to, "body", body)
	return nil
}
