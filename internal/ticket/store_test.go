package ticket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tanya-io/tanya/internal/tabular"
	"github.com/tanya-io/tanya/pkg/protocol"
)

func newTestStore(t *testing.T) (*Store, *tabular.MemStore) {
	t.Helper()
	mem := tabular.NewMemStore()
	return NewStore(mem, "Tickets"), mem
}

func sample(code string) *protocol.Ticket {
	return &protocol.Ticket{
		CreatedAt: time.Date(2024, 3, 1, 8, 30, 0, 0, time.Local),
		Alias:     "Sari",
		Age:       "19",
		Question:  "Dimana bisa tes?",
		Code:      code,
		Locality:  "Halong",
		Status:    protocol.TicketPending,
		UserID:    "9001",
	}
}

func TestAppendAndFindByCode(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, sample("K1700000000")); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, row, err := s.FindByCode(ctx, "K1700000000")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if row != 0 {
		t.Errorf("expected row 0, got %d", row)
	}
	if got.Alias != "Sari" || got.Age != "19" || got.Locality != "Halong" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(time.Date(2024, 3, 1, 8, 30, 0, 0, time.Local)) {
		t.Errorf("created_at mismatch: %v", got.CreatedAt)
	}
}

func TestFindByCodeNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, _, err := s.FindByCode(context.Background(), "K0")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByCodeUnavailable(t *testing.T) {
	s, mem := newTestStore(t)
	mem.Fail = true
	_, _, err := s.FindByCode(context.Background(), "K0")
	if !errors.Is(err, tabular.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestLockWritesOnlyStatusAndOwner(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()
	s.Append(ctx, sample("K1"))

	if err := s.Lock(ctx, 0, "42"); err != nil {
		t.Fatalf("lock: %v", err)
	}

	got, _, _ := s.FindByCode(ctx, "K1")
	if got.Status != protocol.TicketLocked || got.LockedBy != "42" {
		t.Errorf("lock not recorded: %+v", got)
	}
	// The question and user id columns must be untouched.
	if got.Question != "Dimana bisa tes?" || got.UserID != "9001" {
		t.Errorf("lock touched unrelated columns: %+v", got)
	}
	_ = mem
}

func TestFinalizeReply(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.Append(ctx, sample("K1"))
	s.Lock(ctx, 0, "42")

	tk, row, _ := s.FindByCode(ctx, "K1")
	if err := s.FinalizeReply(ctx, row, tk, "Jawaban lengkap.", "@dina"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	got, _, _ := s.FindByCode(ctx, "K1")
	if got.Status != protocol.TicketReplied {
		t.Errorf("expected Replied, got %s", got.Status)
	}
	if got.LockedBy != "" {
		t.Errorf("expected cleared lock, got %q", got.LockedBy)
	}
	if got.Reply != "Jawaban lengkap." || got.AgentDisplay != "@dina" {
		t.Errorf("reply fields wrong: %+v", got)
	}
	if got.UserID != "9001" || got.Locality != "Halong" {
		t.Errorf("finalize corrupted identity columns: %+v", got)
	}
}

func TestListReverseOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for _, code := range []string{"K1", "K2", "K3"} {
		s.Append(ctx, sample(code))
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3, got %d", len(all))
	}
	if all[0].Code != "K3" || all[2].Code != "K1" {
		t.Errorf("expected reverse insertion order, got %s..%s", all[0].Code, all[2].Code)
	}
}

func TestDecodeShortRow(t *testing.T) {
	// Rows written by older tooling can be missing trailing columns;
	// decoding must fill the gaps with empty strings, never panic.
	mem := tabular.NewMemStore()
	mem.Seed("Tickets", [][]string{{"2024-01-01 00:00:00", "A", "20", "Q?"}})
	s := NewStore(mem, "Tickets")

	all, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 row, got %d", len(all))
	}
	got := all[0]
	if got.Alias != "A" || got.Question != "Q?" {
		t.Errorf("short row decoded wrong: %+v", got)
	}
	if got.Code != "" || got.Status != "" || got.UserID != "" {
		t.Errorf("missing columns must decode empty: %+v", got)
	}
}
