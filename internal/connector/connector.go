package connector

import "context"

// Action is one inline button attached to an outbound message. Token
// actions come back as ActionToken on an InboundMessage when pressed;
// URL actions open a link and never come back.
type Action struct {
	Label string
	Token string
	URL   string
}

// OutboundMessage is a message sent to the chat platform. Actions is a
// button grid, one inner slice per row.
type OutboundMessage struct {
	ChatID  string
	Content string // Markdown
	Actions [][]Action
}

// InboundMessage is a decoded event from the chat platform: either free
// text (Content) or a pressed button (ActionToken), never both.
type InboundMessage struct {
	SenderID       string
	SenderUsername string // without leading @, may be empty
	SenderName     string
	ChatID         string
	Content        string
	ActionToken    string
	// ReplyToText is the text of the quoted message when the sender used
	// the platform's reply-to feature. The agent reply flow is keyed off
	// of it.
	ReplyToText string
}

// InboundHandler processes decoded platform events.
type InboundHandler func(ctx context.Context, msg InboundMessage) error

// Connector is the interface to a chat platform.
type Connector interface {
	// Name returns the platform name (e.g. "telegram").
	Name() string
	// Start begins receiving inbound events. Blocks until the context is
	// cancelled.
	Start(ctx context.Context) error
	// Stop shuts the connector down.
	Stop() error
	// Send delivers one outbound message.
	Send(ctx context.Context, msg OutboundMessage) error
}

// Sender is the send-only slice of Connector that message-producing
// components depend on.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}
