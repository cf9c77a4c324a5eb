package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tanya-io/tanya/internal/tabular"
	"github.com/tanya-io/tanya/pkg/protocol"
)

// fakeNotifier records outbound notifications and can simulate a failing
// user-delivery channel.
type fakeNotifier struct {
	mu          sync.Mutex
	submitted   []string
	locked      []string
	delivered   map[string]string // userID → last body
	failDeliver bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{delivered: make(map[string]string)}
}

func (f *fakeNotifier) TicketSubmitted(_ context.Context, t *protocol.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, t.Code)
	return nil
}

func (f *fakeNotifier) TicketLocked(_ context.Context, t *protocol.Ticket, _ protocol.AgentIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = append(f.locked, t.Code)
	return nil
}

func (f *fakeNotifier) DeliverReply(_ context.Context, t *protocol.Ticket, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeliver {
		return fmt.Errorf("user unreachable")
	}
	f.delivered[t.UserID] = body
	return nil
}

type fixture struct {
	mem    *tabular.MemStore
	store  *Store
	notify *fakeNotifier
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := tabular.NewMemStore()
	store := NewStore(mem, "Tickets")
	notify := newFakeNotifier()
	eng := NewEngine(store, notify, nil, nil)
	return &fixture{mem: mem, store: store, notify: notify, engine: eng}
}

func (f *fixture) submit(t *testing.T) string {
	t.Helper()
	code, err := f.engine.Submit(context.Background(), SubmitRequest{
		Alias: "Budi", Age: "25", Locality: "Paringin",
		Question: "Test", UserID: "555001",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return code
}

// mustInvariant checks that locked_by is non-empty iff status is Locked.
func (f *fixture) mustInvariant(t *testing.T, code string) {
	t.Helper()
	tk, _, err := f.store.FindByCode(context.Background(), code)
	if err != nil {
		t.Fatalf("invariant check: %v", err)
	}
	locked := tk.Status == protocol.TicketLocked
	hasOwner := tk.LockedBy != ""
	if locked != hasOwner {
		t.Fatalf("invariant violated: status=%s locked_by=%q", tk.Status, tk.LockedBy)
	}
}

func agent(id, display string) protocol.AgentIdentity {
	return protocol.NewAgentIdentity(id, display)
}

func TestSubmitCreatesPendingTicket(t *testing.T) {
	f := newFixture(t)
	code := f.submit(t)

	if !strings.HasPrefix(code, "K") {
		t.Errorf("expected K-prefixed code, got %q", code)
	}
	if len(f.notify.submitted) != 1 || f.notify.submitted[0] != code {
		t.Errorf("expected agent notification for %s, got %v", code, f.notify.submitted)
	}

	pending, err := f.engine.ListPending(context.Background())
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending ticket, got %d", len(pending))
	}
	tk := pending[0]
	if tk.Code != code || tk.Alias != "Budi" || tk.Status != protocol.TicketPending {
		t.Errorf("unexpected ticket %+v", tk)
	}
	if tk.LockedBy != "" || tk.Reply != "" || tk.AgentDisplay != "" {
		t.Errorf("new ticket must have empty reply/lock fields: %+v", tk)
	}
	f.mustInvariant(t, code)
}

func TestSubmitBurstCodesAreUnique(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	f.engine.now = func() time.Time { return fixed }

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		code := f.submit(t)
		if seen[code] {
			t.Fatalf("duplicate code %s under burst submission", code)
		}
		seen[code] = true
	}
}

func TestSubmitDegradesWhenStoreDown(t *testing.T) {
	f := newFixture(t)
	f.mem.Fail = true

	code, err := f.engine.Submit(context.Background(), SubmitRequest{
		Alias: "Ana", Age: "30", Question: "Help", UserID: "555002",
	})
	if err != nil {
		t.Fatalf("submit must not fail on store outage: %v", err)
	}
	if code == "" {
		t.Fatal("expected a ticket code even without persistence")
	}
	if len(f.notify.submitted) != 1 {
		t.Fatalf("agent notification must not be dropped, got %v", f.notify.submitted)
	}
}

func TestListPendingOrderAndFilter(t *testing.T) {
	f := newFixture(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	f.engine.now = func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}

	first := f.submit(t)
	second := f.submit(t)
	third := f.submit(t)

	// Lock one so it drops out of the pending list.
	if _, err := f.engine.Claim(context.Background(), second, agent("1", "X")); err != nil {
		t.Fatalf("claim: %v", err)
	}

	pending, err := f.engine.ListPending(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	// Reverse insertion order: most recent first.
	if pending[0].Code != third || pending[1].Code != first {
		t.Errorf("expected [%s %s], got [%s %s]", third, first, pending[0].Code, pending[1].Code)
	}
}

func TestListPendingStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.mem.Fail = true
	_, err := f.engine.ListPending(context.Background())
	if !errors.Is(err, tabular.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestClaimNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Claim(context.Background(), "K404", agent("1", "X"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimThenClaimByOther(t *testing.T) {
	f := newFixture(t)
	code := f.submit(t)

	got, err := f.engine.Claim(context.Background(), code, agent("100", "X"))
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if got.Status != protocol.TicketLocked || got.LockedBy != "100" {
		t.Errorf("unexpected claim result %+v", got)
	}
	f.mustInvariant(t, code)

	_, err = f.engine.Claim(context.Background(), code, agent("200", "Y"))
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != RejectLockedByOther {
		t.Fatalf("expected LockedByOther, got %v", err)
	}
	if rej.LockOwner != "100" {
		t.Errorf("expected lock owner 100, got %q", rej.LockOwner)
	}

	// Still locked by the first agent.
	tk, _, _ := f.store.FindByCode(context.Background(), code)
	if tk.LockedBy != "100" {
		t.Errorf("lock owner changed to %q after rejected claim", tk.LockedBy)
	}
}

func TestClaimIdempotentForSameAgent(t *testing.T) {
	f := newFixture(t)
	code := f.submit(t)

	a := agent("100", "X")
	if _, err := f.engine.Claim(context.Background(), code, a); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := f.engine.Claim(context.Background(), code, a); err != nil {
		t.Fatalf("repeat claim by owner must succeed: %v", err)
	}
	f.mustInvariant(t, code)
}

func TestClaimRepliedTicket(t *testing.T) {
	f := newFixture(t)
	code := f.submit(t)
	a := agent("100", "X")
	f.engine.Claim(context.Background(), code, a)
	if _, err := f.engine.Reply(context.Background(), code, a, "done"); err != nil {
		t.Fatalf("reply: %v", err)
	}

	for _, id := range []string{"100", "200"} {
		_, err := f.engine.Claim(context.Background(), code, agent(id, "Z"))
		var rej *Rejection
		if !errors.As(err, &rej) || rej.Reason != RejectAlreadyReplied {
			t.Errorf("agent %s: expected AlreadyReplied, got %v", id, err)
		}
	}
}

func TestReplyRequiresLock(t *testing.T) {
	f := newFixture(t)
	code := f.submit(t)

	_, err := f.engine.Reply(context.Background(), code, agent("100", "X"), "hi")
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != RejectNotLocked {
		t.Fatalf("expected NotLocked, got %v", err)
	}
	// Store unchanged.
	tk, _, _ := f.store.FindByCode(context.Background(), code)
	if tk.Status != protocol.TicketPending || tk.Reply != "" {
		t.Errorf("rejected reply mutated the ticket: %+v", tk)
	}
}

func TestReplyByNonOwnerRejected(t *testing.T) {
	f := newFixture(t)
	code := f.submit(t)
	f.engine.Claim(context.Background(), code, agent("100", "X"))

	_, err := f.engine.Reply(context.Background(), code, agent("200", "Y"), "mine!")
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != RejectLockedByOther {
		t.Fatalf("expected LockedByOther, got %v", err)
	}
	if rej.LockOwner != "100" {
		t.Errorf("expected owner 100, got %q", rej.LockOwner)
	}

	// No delivery, no mutation.
	if len(f.notify.delivered) != 0 {
		t.Error("reply by non-owner must not deliver anything")
	}
	tk, _, _ := f.store.FindByCode(context.Background(), code)
	if tk.Status != protocol.TicketLocked || tk.LockedBy != "100" || tk.Reply != "" {
		t.Errorf("rejected reply mutated the ticket: %+v", tk)
	}
}

func TestReplySuccess(t *testing.T) {
	f := newFixture(t)
	code := f.submit(t)
	a := agent("100", "@kak_dina")
	f.engine.Claim(context.Background(), code, a)

	body := "Silakan datang ke puskesmas terdekat.\nSalam."
	got, err := f.engine.Reply(context.Background(), code, a, body)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if got.Status != protocol.TicketReplied {
		t.Errorf("expected Replied, got %s", got.Status)
	}

	tk, _, _ := f.store.FindByCode(context.Background(), code)
	if tk.Status != protocol.TicketReplied {
		t.Errorf("expected Replied in store, got %s", tk.Status)
	}
	if tk.LockedBy != "" {
		t.Errorf("expected cleared lock, got %q", tk.LockedBy)
	}
	if tk.Reply != body {
		t.Errorf("reply field must equal body exactly:\nwant %q\ngot  %q", body, tk.Reply)
	}
	if tk.AgentDisplay != "@kak_dina" {
		t.Errorf("expected agent display recorded, got %q", tk.AgentDisplay)
	}
	if f.notify.delivered["555001"] != body {
		t.Errorf("expected delivery to originator, got %v", f.notify.delivered)
	}
	f.mustInvariant(t, code)

	// Replied is terminal; the ticket leaves the pending list.
	pending, _ := f.engine.ListPending(context.Background())
	for _, p := range pending {
		if p.Code == code {
			t.Error("replied ticket still listed as pending")
		}
	}
}

func TestReplyDeliveryFailureKeepsLock(t *testing.T) {
	f := newFixture(t)
	code := f.submit(t)
	a := agent("100", "X")
	f.engine.Claim(context.Background(), code, a)

	f.notify.failDeliver = true
	_, err := f.engine.Reply(context.Background(), code, a, "first try")
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != RejectDeliveryFailed {
		t.Fatalf("expected DeliveryFailed, got %v", err)
	}

	tk, _, _ := f.store.FindByCode(context.Background(), code)
	if tk.Status != protocol.TicketLocked || tk.LockedBy != "100" {
		t.Errorf("ticket must stay Locked for retry, got %+v", tk)
	}
	if tk.Reply != "" {
		t.Errorf("failed delivery must not record a reply, got %q", tk.Reply)
	}

	// Retry by the same agent succeeds.
	f.notify.failDeliver = false
	if _, err := f.engine.Reply(context.Background(), code, a, "second try"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	tk, _, _ = f.store.FindByCode(context.Background(), code)
	if tk.Status != protocol.TicketReplied || tk.Reply != "second try" {
		t.Errorf("retry did not land: %+v", tk)
	}
}

func TestReplyStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	code := f.submit(t)
	a := agent("100", "X")
	f.engine.Claim(context.Background(), code, a)

	f.mem.Fail = true
	_, err := f.engine.Reply(context.Background(), code, a, "body")
	if !errors.Is(err, tabular.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

// TestConcurrentClaims exercises the check-and-set under parallel claims.
// The store has no conditional write, so the protocol cannot promise that
// exactly one concurrent claim wins when reads interleave before either
// write; what it does promise is that the ticket ends Locked by one of
// the claimants with the lock invariant intact, and that any claim whose
// read observes an existing lock is rejected with the owner's identity.
func TestConcurrentClaims(t *testing.T) {
	f := newFixture(t)
	code := f.submit(t)

	const n = 8
	var wg sync.WaitGroup
	winners := make([]string, 0, n)
	var mu sync.Mutex

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.engine.Claim(context.Background(), code, agent(id, "A"+id))
			if err == nil {
				mu.Lock()
				winners = append(winners, id)
				mu.Unlock()
				return
			}
			var rej *Rejection
			if !errors.As(err, &rej) || rej.Reason != RejectLockedByOther {
				t.Errorf("agent %s: unexpected claim error %v", id, err)
			}
		}(fmt.Sprintf("%d", 1000+i))
	}
	wg.Wait()

	if len(winners) == 0 {
		t.Fatal("no claim succeeded")
	}
	tk, _, _ := f.store.FindByCode(context.Background(), code)
	if tk.Status != protocol.TicketLocked {
		t.Fatalf("expected Locked, got %s", tk.Status)
	}
	owned := false
	for _, id := range winners {
		if tk.LockedBy == id {
			owned = true
		}
	}
	if !owned {
		t.Errorf("lock owner %q is not one of the successful claimants %v", tk.LockedBy, winners)
	}
	f.mustInvariant(t, code)
}

// TestEndToEndScenario walks the full lifecycle: submit, list, competing
// claims, reply, list again.
func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.engine.Submit(ctx, SubmitRequest{
		Alias: "Budi", Age: "25", Locality: "Juai",
		Question: "Test", UserID: "777",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	pending, _ := f.engine.ListPending(ctx)
	if len(pending) != 1 || pending[0].Code != code {
		t.Fatalf("expected exactly the new ticket pending, got %v", pending)
	}

	x := agent("1", "X")
	y := agent("2", "Y")

	if _, err := f.engine.Claim(ctx, code, x); err != nil {
		t.Fatalf("claim by X: %v", err)
	}
	_, err = f.engine.Claim(ctx, code, y)
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != RejectLockedByOther || rej.LockOwner != "1" {
		t.Fatalf("claim by Y: expected LockedByOther(1), got %v", err)
	}

	if _, err := f.engine.Reply(ctx, code, x, "Reply text"); err != nil {
		t.Fatalf("reply by X: %v", err)
	}

	pending, _ = f.engine.ListPending(ctx)
	if len(pending) != 0 {
		t.Errorf("expected empty pending list, got %d", len(pending))
	}
	if f.notify.delivered["777"] != "Reply text" {
		t.Errorf("expected reply delivered to user 777, got %v", f.notify.delivered)
	}
}
