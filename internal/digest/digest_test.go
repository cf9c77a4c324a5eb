package digest

import (
	"strings"
	"testing"

	"github.com/tanya-io/tanya/pkg/protocol"
)

func TestTicket(t *testing.T) {
	got := Ticket(&protocol.Ticket{
		Code: "K1700000000", Alias: "Budi", Age: "25",
		Locality: "Juai", Question: "Test",
	})
	for _, want := range []string{"K1700000000", "Budi", "25", "Juai", "Test"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in digest, got:\n%s", want, got)
		}
	}
}

func TestTicketMissingFields(t *testing.T) {
	// Malformed input renders as empty strings, never panics.
	got := Ticket(&protocol.Ticket{})
	if got == "" {
		t.Error("expected a skeleton even for an empty ticket")
	}
	if Ticket(nil) != "" {
		t.Error("nil ticket must render empty")
	}
}

func TestLockNoticeCarriesReplyMarker(t *testing.T) {
	got := LockNotice(
		&protocol.Ticket{Code: "K123"},
		protocol.NewAgentIdentity("42", "@dina"),
	)
	if !strings.Contains(got, "membalas kode K123") {
		t.Errorf("lock notice must carry the reply marker, got:\n%s", got)
	}
	if !strings.Contains(got, "@dina") {
		t.Errorf("lock notice must name the owner, got:\n%s", got)
	}
}

func TestUserReply(t *testing.T) {
	got := UserReply(&protocol.Ticket{Code: "K9"}, "jawaban")
	if !strings.Contains(got, "K9") || !strings.Contains(got, "jawaban") {
		t.Errorf("unexpected user reply:\n%s", got)
	}
}

func TestPendingListEmpty(t *testing.T) {
	got := PendingList(nil)
	if !strings.Contains(got, "Tidak ada") {
		t.Errorf("expected empty-list message, got %q", got)
	}
}

func TestPendingListKeepsOrder(t *testing.T) {
	got := PendingList([]*protocol.Ticket{
		{Code: "K3"}, {Code: "K1"},
	})
	if strings.Index(got, "K3") > strings.Index(got, "K1") {
		t.Errorf("expected caller order preserved:\n%s", got)
	}
}

func TestStaleLocks(t *testing.T) {
	if StaleLocks(nil) != "" {
		t.Error("no stale locks must render nothing")
	}
	got := StaleLocks([]*protocol.Ticket{
		{Code: "K5", LockedBy: "42", Question: "Q"},
	})
	if !strings.Contains(got, "K5") || !strings.Contains(got, "ID 42") {
		t.Errorf("unexpected stale block:\n%s", got)
	}
}
