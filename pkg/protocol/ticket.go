package protocol

import "time"

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

const (
	TicketPending TicketStatus = "Pending"
	TicketLocked  TicketStatus = "Locked"
	TicketReplied TicketStatus = "Replied"
)

// Ticket is one anonymous help request, tracked from submission until an
// agent's reply has been delivered back to the requester.
type Ticket struct {
	CreatedAt    time.Time    `json:"created_at"`
	Alias        string       `json:"alias"`
	Age          string       `json:"age"`
	Question     string       `json:"question"`
	Reply        string       `json:"reply,omitempty"`
	Code         string       `json:"code"`
	AgentDisplay string       `json:"agent_display,omitempty"`
	Locality     string       `json:"locality"`
	Status       TicketStatus `json:"status"`
	LockedBy     string       `json:"locked_by,omitempty"`
	UserID       string       `json:"user_id"`
}

// Open reports whether the ticket can still be claimed or replied to.
func (t *Ticket) Open() bool {
	return t.Status != TicketReplied
}
