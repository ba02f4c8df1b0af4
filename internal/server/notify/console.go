package notify

import (
	"context"

	"github.com/dmitrijs2005/smartwaste/internal/logging"
)

// ConsoleSender writes messages to the server log so an operator can relay
// them. It is the only place a one-time code is ever logged.
type ConsoleSender struct {
	log logging.Logger
}

func NewConsoleSender(log logging.Logger) *ConsoleSender {
	return &ConsoleSender{log: log.With("module", "notify", "channel", ChannelConsole)}
}

func (c *ConsoleSender) Send(ctx context.Context, to, subject, body string) error {
	c.log.Info(ctx, "message for operator delivery", "to", to, "subject", subject, "body", body)
	return nil
}
