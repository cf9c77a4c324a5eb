package notify

import (
	"context"
	"log/slog"

	"github.com/tanya-io/tanya/internal/ticket"
	"github.com/tanya-io/tanya/pkg/protocol"
)

// Fanout sends every notification to the primary notifier and mirrors it
// to the secondaries. Only the primary's error is returned: a failed
// mirror is a log line, a failed primary is a failed transition. For
// DeliverReply the distinction matters most, since the engine refuses to
// mark a ticket Replied when that call fails.
type Fanout struct {
	primary ticket.Notifier
	mirrors []ticket.Notifier
	logger  *slog.Logger
}

// NewFanout wraps a primary notifier with best-effort mirrors.
func NewFanout(primary ticket.Notifier, logger *slog.Logger, mirrors ...ticket.Notifier) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{primary: primary, mirrors: mirrors, logger: logger}
}

func (f *Fanout) TicketSubmitted(ctx context.Context, t *protocol.Ticket) error {
	err := f.primary.TicketSubmitted(ctx, t)
	for _, m := range f.mirrors {
		if merr := m.TicketSubmitted(ctx, t); merr != nil {
			f.logger.Warn("mirror notify failed", "event", "submitted", "code", t.Code, "error", merr)
		}
	}
	return err
}

func (f *Fanout) TicketLocked(ctx context.Context, t *protocol.Ticket, agent protocol.AgentIdentity) error {
	err := f.primary.TicketLocked(ctx, t, agent)
	for _, m := range f.mirrors {
		if merr := m.TicketLocked(ctx, t, agent); merr != nil {
			f.logger.Warn("mirror notify failed", "event", "locked", "code", t.Code, "error", merr)
		}
	}
	return err
}

func (f *Fanout) DeliverReply(ctx context.Context, t *protocol.Ticket, body string) error {
	err := f.primary.DeliverReply(ctx, t, body)
	if err != nil {
		// Do not mirror a delivery that did not happen.
		return err
	}
	for _, m := range f.mirrors {
		if merr := m.DeliverReply(ctx, t, body); merr != nil {
			f.logger.Warn("mirror notify failed", "event", "replied", "code", t.Code, "error", merr)
		}
	}
	return nil
}
