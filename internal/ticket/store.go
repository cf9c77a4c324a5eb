package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tanya-io/tanya/internal/tabular"
	"github.com/tanya-io/tanya/pkg/protocol"
)

// Ticket sheet column layout. The shared spreadsheet is the system of
// record, so the positions are part of the external contract and must
// match what every other consumer of the sheet expects.
const (
	colCreatedAt    = 0  // A
	colAlias        = 1  // B
	colAge          = 2  // C
	colQuestion     = 3  // D
	colReply        = 4  // E
	colCode         = 5  // F
	colAgentDisplay = 6  // G
	colLocality     = 7  // H
	colStatus       = 8  // I
	colLockedBy     = 9  // J
	colUserID       = 10 // K
)

// timeLayout is the created_at cell format, store-local timezone.
const timeLayout = "2006-01-02 15:04:05"

// ErrNotFound reports that a ticket code resolved to no row.
var ErrNotFound = errors.New("ticket: not found")

// Store maps the raw ticket sheet onto typed tickets. Untyped positional
// rows stop at this boundary; everything above works with
// protocol.Ticket values and row handles.
//
// Store holds no cache. Every lookup re-reads the shared sheet so that a
// decision made on the result is made on fresh state.
type Store struct {
	tab   tabular.Store
	sheet string
}

// NewStore binds a typed ticket store to one sheet of the tabular store.
func NewStore(tab tabular.Store, sheet string) *Store {
	return &Store{tab: tab, sheet: sheet}
}

// Append persists a new ticket as one row.
func (s *Store) Append(ctx context.Context, t *protocol.Ticket) error {
	if err := s.tab.AppendRow(ctx, s.sheet, encode(t)); err != nil {
		return fmt.Errorf("ticket: append %s: %w", t.Code, err)
	}
	return nil
}

// FindByCode looks up a ticket by its code and returns it together with
// its current row index. The row index is only a handle for a follow-up
// write; it must not be held across unrelated operations.
func (s *Store) FindByCode(ctx context.Context, code string) (*protocol.Ticket, int, error) {
	row, err := s.tab.FindRowByKey(ctx, s.sheet, colCode, code)
	if errors.Is(err, tabular.ErrRowNotFound) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("ticket: find %s: %w", code, err)
	}
	cells, err := s.tab.ReadRow(ctx, s.sheet, row)
	if err != nil {
		return nil, 0, fmt.Errorf("ticket: read %s: %w", code, err)
	}
	return decode(cells), row, nil
}

// Lock writes status=Locked and the owning agent in a single range write
// covering exactly the two cells that change together.
func (s *Store) Lock(ctx context.Context, row int, agentID string) error {
	err := s.tab.WriteRange(ctx, s.sheet, row, colStatus, colLockedBy,
		[]string{string(protocol.TicketLocked), agentID})
	if err != nil {
		return fmt.Errorf("ticket: lock row %d: %w", row, err)
	}
	return nil
}

// FinalizeReply records a delivered reply: reply text, agent display name,
// status=Replied and a cleared lock land in one E:K range write so the row
// is never observable in a half-updated state.
func (s *Store) FinalizeReply(ctx context.Context, row int, t *protocol.Ticket, body, agentDisplay string) error {
	err := s.tab.WriteRange(ctx, s.sheet, row, colReply, colUserID, []string{
		body,
		t.Code,
		agentDisplay,
		t.Locality,
		string(protocol.TicketReplied),
		"", // lock cleared
		t.UserID,
	})
	if err != nil {
		return fmt.Errorf("ticket: finalize %s: %w", t.Code, err)
	}
	return nil
}

// List returns tickets with the given status in reverse insertion order
// (most recent first). An empty status returns everything.
func (s *Store) List(ctx context.Context, status protocol.TicketStatus) ([]*protocol.Ticket, error) {
	rows, err := s.tab.ReadAll(ctx, s.sheet)
	if err != nil {
		return nil, fmt.Errorf("ticket: list: %w", err)
	}
	var out []*protocol.Ticket
	for i := len(rows) - 1; i >= 0; i-- {
		t := decode(rows[i])
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func encode(t *protocol.Ticket) []string {
	return []string{
		t.CreatedAt.Format(timeLayout),
		t.Alias,
		t.Age,
		t.Question,
		t.Reply,
		t.Code,
		t.AgentDisplay,
		t.Locality,
		string(t.Status),
		t.LockedBy,
		t.UserID,
	}
}

func decode(cells []string) *protocol.Ticket {
	t := &protocol.Ticket{
		Alias:        col(cells, colAlias),
		Age:          col(cells, colAge),
		Question:     col(cells, colQuestion),
		Reply:        col(cells, colReply),
		Code:         col(cells, colCode),
		AgentDisplay: col(cells, colAgentDisplay),
		Locality:     col(cells, colLocality),
		Status:       protocol.TicketStatus(col(cells, colStatus)),
		LockedBy:     col(cells, colLockedBy),
		UserID:       col(cells, colUserID),
	}
	t.CreatedAt, _ = time.ParseInLocation(timeLayout, col(cells, colCreatedAt), time.Local)
	return t
}

func col(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}
