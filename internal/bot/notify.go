package bot

import (
	"context"
	"fmt"

	"github.com/tanya-io/tanya/internal/connector"
	"github.com/tanya-io/tanya/internal/digest"
	"github.com/tanya-io/tanya/pkg/protocol"
)

// Notifier delivers lifecycle notifications over the chat transport. It
// is the production implementation of the engine's outbound interface:
// agent-channel announcements go to the shared agent chat, replies go
// straight to the originating user.
type Notifier struct {
	sender      connector.Sender
	agentChatID string
}

// NewNotifier creates a transport-backed notifier.
func NewNotifier(sender connector.Sender, agentChatID string) *Notifier {
	return &Notifier{sender: sender, agentChatID: agentChatID}
}

func (n *Notifier) TicketSubmitted(ctx context.Context, t *protocol.Ticket) error {
	msg := connector.OutboundMessage{
		ChatID:  n.agentChatID,
		Content: digest.NewTicket(t),
	}
	if t.UserID != "" {
		msg.Actions = [][]connector.Action{{claimAction(t)}}
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify agents: %w", err)
	}
	return nil
}

func (n *Notifier) TicketLocked(ctx context.Context, t *protocol.Ticket, agent protocol.AgentIdentity) error {
	return n.sender.Send(ctx, connector.OutboundMessage{
		ChatID:  n.agentChatID,
		Content: digest.LockNotice(t, agent),
	})
}

func (n *Notifier) DeliverReply(ctx context.Context, t *protocol.Ticket, body string) error {
	return n.sender.Send(ctx, connector.OutboundMessage{
		ChatID:  t.UserID,
		Content: digest.UserReply(t, body),
	})
}

func claimAction(t *protocol.Ticket) connector.Action {
	return connector.Action{
		Label: "💬 Balas",
		Token: fmt.Sprintf("balas_%s_%s", t.UserID, t.Code),
	}
}
