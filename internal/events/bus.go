package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tanya-io/tanya/pkg/protocol"
)

const subscriberBuffer = 32

// Bus fans ticket lifecycle events out to in-process subscribers (the API
// event stream, the Slack mirror). Delivery is best-effort: a subscriber
// that stops draining loses events rather than blocking the engine.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]chan protocol.Event
	logger *slog.Logger
}

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string]chan protocol.Event),
		logger: logger,
	}
}

// Publish emits one event to every subscriber.
func (b *Bus) Publish(kind protocol.EventKind, ticketCode, agent, reason string) {
	ev := protocol.Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		TicketCode: ticketCode,
		Agent:      agent,
		Reason:     reason,
		Time:       time.Now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("event dropped, slow subscriber", "subscriber", id, "event", ev.ID)
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release the channel.
func (b *Bus) Subscribe() (<-chan protocol.Event, func()) {
	id := uuid.NewString()
	ch := make(chan protocol.Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}
