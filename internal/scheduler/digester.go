package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/tanya-io/tanya/internal/connector"
	"github.com/tanya-io/tanya/internal/digest"
	"github.com/tanya-io/tanya/internal/ticket"
	"github.com/tanya-io/tanya/pkg/protocol"
)

// Digester builds and sends the periodic agent-channel digest. It stays
// silent when there is nothing to report; the channel should not fill up
// with "all clear" messages.
type Digester struct {
	engine      *ticket.Engine
	sender      connector.Sender
	agentChatID string
	staleAfter  time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewDigester wires a digester. staleAfter controls when a Locked ticket
// shows up in the reminder block.
func NewDigester(engine *ticket.Engine, sender connector.Sender, agentChatID string,
	staleAfter time.Duration, logger *slog.Logger) *Digester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Digester{
		engine:      engine,
		sender:      sender,
		agentChatID: agentChatID,
		staleAfter:  staleAfter,
		logger:      logger,
		now:         time.Now,
	}
}

// Run executes one digest pass. Store failures are logged and swallowed:
// the next cron tick retries anyway.
func (d *Digester) Run(ctx context.Context) {
	pending, err := d.engine.ListPending(ctx)
	if err != nil {
		d.logger.Error("digest: pending list failed", "error", err)
		return
	}
	stale, err := d.staleLocks(ctx)
	if err != nil {
		d.logger.Error("digest: stale locks failed", "error", err)
		return
	}
	if len(pending) == 0 && len(stale) == 0 {
		return
	}

	content := ""
	if len(pending) > 0 {
		content = digest.PendingList(pending)
	}
	if block := digest.StaleLocks(stale); block != "" {
		if content != "" {
			content += "\n"
		}
		content += block
	}
	err = d.sender.Send(ctx, connector.OutboundMessage{
		ChatID:  d.agentChatID,
		Content: content,
	})
	if err != nil {
		d.logger.Error("digest: send failed", "error", err)
		return
	}
	d.logger.Info("digest sent", "pending", len(pending), "stale_locks", len(stale))
}

// staleLocks returns Locked tickets older than the threshold. The store
// records no lock timestamp, so submission age is the proxy: a ticket
// locked right away still only surfaces once it has genuinely been
// waiting that long.
func (d *Digester) staleLocks(ctx context.Context) ([]*protocol.Ticket, error) {
	locked, err := d.engine.List(ctx, protocol.TicketLocked)
	if err != nil {
		return nil, err
	}
	cutoff := d.now().Add(-d.staleAfter)
	var stale []*protocol.Ticket
	for _, t := range locked {
		if t.CreatedAt.Before(cutoff) {
			stale = append(stale, t)
		}
	}
	return stale, nil
}
