// Package notify mirrors ticket lifecycle notifications to secondary
// channels. The chat transport stays the system of record for delivery;
// mirrors are best-effort and never fail a lifecycle transition.
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/tanya-io/tanya/pkg/protocol"
)

// slackPoster is the slice of the Slack client the mirror uses.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackMirror posts lifecycle events into a Slack channel so on-call
// staff see the queue without joining the agent chat. It is one-way:
// nothing in Slack can claim or answer a ticket.
type SlackMirror struct {
	client  slackPoster
	channel string
}

// NewSlackMirror creates a mirror for the given bot token and channel ID.
func NewSlackMirror(token, channel string) *SlackMirror {
	return &SlackMirror{client: slack.New(token), channel: channel}
}

func (m *SlackMirror) TicketSubmitted(ctx context.Context, t *protocol.Ticket) error {
	text := fmt.Sprintf(":incoming_envelope: Tiket baru `%s` dari %s (%s) — %s",
		t.Code, t.Alias, t.Locality, t.Question)
	return m.post(ctx, text)
}

func (m *SlackMirror) TicketLocked(ctx context.Context, t *protocol.Ticket, agent protocol.AgentIdentity) error {
	return m.post(ctx, fmt.Sprintf(":lock: Tiket `%s` dikunci oleh %s", t.Code, agent.Display))
}

// DeliverReply only notes that the reply went out; the body itself is
// private to the requester and never leaves the primary transport.
func (m *SlackMirror) DeliverReply(ctx context.Context, t *protocol.Ticket, _ string) error {
	return m.post(ctx, fmt.Sprintf(":white_check_mark: Tiket `%s` sudah dibalas", t.Code))
}

func (m *SlackMirror) post(ctx context.Context, text string) error {
	_, _, err := m.client.PostMessageContext(ctx, m.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl())
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}
