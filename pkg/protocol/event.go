package protocol

import "time"

// EventKind classifies a ticket lifecycle event.
type EventKind string

const (
	EventSubmitted EventKind = "submitted"
	EventClaimed   EventKind = "claimed"
	EventReplied   EventKind = "replied"
	EventRejected  EventKind = "rejected"
)

// Event is a single lifecycle transition, published on the in-process bus
// and streamed to API clients.
type Event struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	TicketCode string    `json:"ticket_code"`
	Agent      string    `json:"agent,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Time       time.Time `json:"time"`
}
