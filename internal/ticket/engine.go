package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tanya-io/tanya/internal/events"
	"github.com/tanya-io/tanya/internal/tabular"
	"github.com/tanya-io/tanya/pkg/protocol"
)

// Notifier is the outbound side of the lifecycle engine. Implementations
// sit on the chat transport; the engine only cares that DeliverReply can
// fail in a way it can observe, because a reply that was not delivered
// must not mark the ticket Replied.
type Notifier interface {
	// TicketSubmitted announces a new ticket to the agent channel.
	TicketSubmitted(ctx context.Context, t *protocol.Ticket) error
	// TicketLocked tells the agent channel who holds the ticket now and
	// how to respond to it.
	TicketLocked(ctx context.Context, t *protocol.Ticket, agent protocol.AgentIdentity) error
	// DeliverReply sends the reply body to the ticket's originator.
	DeliverReply(ctx context.Context, t *protocol.Ticket, body string) error
}

// SubmitRequest carries the user-side inputs of a new ticket.
type SubmitRequest struct {
	Alias    string
	Age      string
	Locality string
	Question string
	UserID   string
}

// Engine owns the ticket lifecycle: submit, list-pending, claim, reply.
//
// The shared sheet is the only synchronization point and offers no
// conditional write, so every transition here is a read-then-write
// check-and-set: re-read current state, validate, write the full set of
// changed cells in one call. That narrows the race window between two
// concurrent actors to the gap between one read and one write; it does
// not close it. The residual window is a documented limitation of the
// store, not of this code.
type Engine struct {
	store  *Store
	notify Notifier
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time

	// maxCodeProbe bounds the append-time uniqueness probe for
	// second-resolution ticket codes.
	maxCodeProbe int
}

// NewEngine creates a lifecycle engine. bus may be nil.
func NewEngine(store *Store, notify Notifier, bus *events.Bus, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:        store,
		notify:       notify,
		bus:          bus,
		logger:       logger,
		now:          time.Now,
		maxCodeProbe: 10,
	}
}

// Submit creates a Pending ticket and announces it to the agent channel.
// A dead store degrades to notify-only: the agents still hear about the
// request even when the row cannot be persisted. Only a failed agent
// notification fails the call.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	t := &protocol.Ticket{
		CreatedAt: e.now(),
		Alias:     req.Alias,
		Age:       req.Age,
		Question:  req.Question,
		Locality:  req.Locality,
		Status:    protocol.TicketPending,
		UserID:    req.UserID,
	}
	t.Code = e.uniqueCode(ctx)

	if err := e.notify.TicketSubmitted(ctx, t); err != nil {
		return "", fmt.Errorf("submit %s: notify agents: %w", t.Code, err)
	}

	if err := e.store.Append(ctx, t); err != nil {
		if errors.Is(err, tabular.ErrUnavailable) {
			e.logger.Warn("store unavailable, ticket not persisted",
				"code", t.Code, "error", err)
		} else {
			e.logger.Error("ticket append failed", "code", t.Code, "error", err)
		}
	}

	e.publish(protocol.EventSubmitted, t.Code, "", "")
	e.logger.Info("ticket submitted", "code", t.Code, "locality", t.Locality)
	return t.Code, nil
}

// ListPending returns the Pending tickets, most recent first. The result
// is a snapshot; callers wanting fresh state call again.
func (e *Engine) ListPending(ctx context.Context) ([]*protocol.Ticket, error) {
	return e.store.List(ctx, protocol.TicketPending)
}

// List returns tickets by status ("" = all), most recent first.
func (e *Engine) List(ctx context.Context, status protocol.TicketStatus) ([]*protocol.Ticket, error) {
	return e.store.List(ctx, status)
}

// Find returns one ticket by code.
func (e *Engine) Find(ctx context.Context, code string) (*protocol.Ticket, error) {
	t, _, err := e.store.FindByCode(ctx, code)
	return t, err
}

// Claim takes ownership of a ticket for an agent. Claiming a ticket the
// agent already holds is an idempotent success. Returns the locked
// ticket, or ErrNotFound, a *Rejection, or a store error.
func (e *Engine) Claim(ctx context.Context, code string, agent protocol.AgentIdentity) (*protocol.Ticket, error) {
	t, row, err := e.store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if t.Status == protocol.TicketReplied {
		e.publish(protocol.EventRejected, code, agent.ID, string(RejectAlreadyReplied))
		return nil, &Rejection{Reason: RejectAlreadyReplied}
	}
	if t.Status == protocol.TicketLocked && t.LockedBy != "" && !agent.Is(t.LockedBy) {
		e.publish(protocol.EventRejected, code, agent.ID, string(RejectLockedByOther))
		return nil, &Rejection{Reason: RejectLockedByOther, LockOwner: t.LockedBy}
	}

	if err := e.store.Lock(ctx, row, agent.ID); err != nil {
		return nil, err
	}
	t.Status = protocol.TicketLocked
	t.LockedBy = agent.ID

	if err := e.notify.TicketLocked(ctx, t, agent); err != nil {
		// The lock is already durable; a failed confirmation only costs
		// the agent the reply prompt. Log and move on.
		e.logger.Warn("lock confirmation failed", "code", code, "error", err)
	}

	e.publish(protocol.EventClaimed, code, agent.ID, "")
	e.logger.Info("ticket claimed", "code", code, "agent", agent.ID)
	return t, nil
}

// Reply delivers an agent's answer to the originator and marks the ticket
// Replied. The ownership check against locked_by is the central
// correctness guarantee of the protocol: it is exact string equality on
// the agent identity, never display-name matching. Delivery happens
// before the store write; if delivery fails the ticket stays Locked so
// the same agent can retry.
func (e *Engine) Reply(ctx context.Context, code string, agent protocol.AgentIdentity, body string) (*protocol.Ticket, error) {
	t, row, err := e.store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if t.Status != protocol.TicketLocked {
		reason := RejectNotLocked
		if t.Status == protocol.TicketReplied {
			reason = RejectAlreadyReplied
		}
		e.publish(protocol.EventRejected, code, agent.ID, string(reason))
		return nil, &Rejection{Reason: reason}
	}
	if !agent.Is(t.LockedBy) {
		e.publish(protocol.EventRejected, code, agent.ID, string(RejectLockedByOther))
		return nil, &Rejection{Reason: RejectLockedByOther, LockOwner: t.LockedBy}
	}

	if err := e.notify.DeliverReply(ctx, t, body); err != nil {
		e.publish(protocol.EventRejected, code, agent.ID, string(RejectDeliveryFailed))
		return nil, &Rejection{Reason: RejectDeliveryFailed, Cause: err}
	}

	if err := e.store.FinalizeReply(ctx, row, t, body, agent.Display); err != nil {
		// Delivered but not recorded. The ticket stays Locked; surfacing
		// the error lets the agent retry, which re-delivers but cannot
		// mis-attribute. Exactly-once across this failure is a non-goal.
		return nil, err
	}
	t.Reply = body
	t.AgentDisplay = agent.Display
	t.Status = protocol.TicketReplied
	t.LockedBy = ""

	e.publish(protocol.EventReplied, code, agent.ID, "")
	e.logger.Info("ticket replied", "code", code, "agent", agent.ID)
	return t, nil
}

// uniqueCode generates a K<unix-seconds> code, probing forward one second
// at a time when a burst of submissions lands on the same timestamp. An
// unreachable store skips the probe: submission is already degraded to
// notify-only then, and the notification still carries a usable code.
func (e *Engine) uniqueCode(ctx context.Context) string {
	ts := e.now().Unix()
	for i := 0; i < e.maxCodeProbe; i++ {
		code := fmt.Sprintf("K%d", ts+int64(i))
		_, _, err := e.store.FindByCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code
		}
		if err != nil {
			return code
		}
	}
	return fmt.Sprintf("K%d", ts+int64(e.maxCodeProbe))
}

func (e *Engine) publish(kind protocol.EventKind, code, agent, reason string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(kind, code, agent, reason)
}
