// Package notify delivers one-time codes to account owners. Email goes out
// over SMTP; when no mail server is configured or it fails, codes are
// written to the operator console instead.
package notify

import (
	"context"

	"github.com/dmitrijs2005/smartwaste/internal/logging"
)

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Channel names the path a message actually took.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelConsole Channel = "console"
)

// Dispatcher tries the primary sender and falls back to the console.
type Dispatcher struct {
	primary  Sender
	fallback Sender
	log      logging.Logger
}

// NewDispatcher builds a Dispatcher. primary may be nil.
func NewDispatcher(primary, fallback Sender, log logging.Logger) *Dispatcher {
	return &Dispatcher{primary: primary, fallback: fallback, log: log.With("module", "notify")}
}

// Dispatch delivers the message and reports the channel used. An error is
// returned only when the fallback fails as well.
func (d *Dispatcher) Dispatch(ctx context.Context, to, subject, body string) (Channel, error) {
	if d.primary != nil {
		err := d.primary.Send(ctx, to, subject, body)
		if err == nil {
			return ChannelEmail, nil
		}
		d.log.Warn(ctx, "email delivery failed, using console fallback", "error", err)
	}
	if err := d.fallback.Send(ctx, to, subject, body); err != nil {
		return "", err
	}
	return ChannelConsole, nil
}
