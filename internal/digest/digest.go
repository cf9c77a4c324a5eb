// Package digest renders tickets for agent review and channel
// announcements. Everything here is pure formatting: missing fields come
// out as empty strings, no function fails.
package digest

import (
	"fmt"
	"strings"

	"github.com/tanya-io/tanya/pkg/protocol"
)

// Ticket renders one pending ticket for the agent digest.
func Ticket(t *protocol.Ticket) string {
	if t == nil {
		return ""
	}
	return fmt.Sprintf("🆔 *%s*\n👤 %s (%s thn)\n📍 %s\n❓ %s",
		t.Code, t.Alias, t.Age, t.Locality, t.Question)
}

// NewTicket renders the agent-channel announcement of a fresh submission.
func NewTicket(t *protocol.Ticket) string {
	if t == nil {
		return ""
	}
	return fmt.Sprintf("📨 *Tatakunan Baru*\n👤 %s (%s thn)\n📍 %s\n🆔 `%s`\n\n%s",
		t.Alias, t.Age, t.Locality, t.Code, t.Question)
}

// LockNotice renders the claim confirmation. The "membalas kode <code>"
// marker is load-bearing: the reply flow finds the ticket code by parsing
// it back out of the quoted message.
func LockNotice(t *protocol.Ticket, agent protocol.AgentIdentity) string {
	if t == nil {
		return ""
	}
	return fmt.Sprintf("🔒 Tiket dikunci oleh %s\nReply pesan ini untuk membalas kode %s.",
		agent.Display, t.Code)
}

// UserReply renders the answer as delivered to the requester.
func UserReply(t *protocol.Ticket, body string) string {
	if t == nil {
		return body
	}
	return fmt.Sprintf("📬 *Balasan Admin*\n🆔 `%s`\n\n%s", t.Code, body)
}

// PendingList renders the full digest: a header plus one block per
// ticket, most recent first (the order the caller provides).
func PendingList(tickets []*protocol.Ticket) string {
	if len(tickets) == 0 {
		return "✅ Tidak ada tiket Pending."
	}
	var b strings.Builder
	b.WriteString("📋 *Daftar Tiket Pending*\n")
	for _, t := range tickets {
		b.WriteString("\n")
		b.WriteString(Ticket(t))
		b.WriteString("\n")
	}
	return b.String()
}

// StaleLocks renders the reminder block for tickets that have been
// Locked past the given description (e.g. "2 jam"). There is no automatic
// unlock; the digest only makes the backlog visible so a human resolves it.
func StaleLocks(tickets []*protocol.Ticket) string {
	if len(tickets) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("⏳ *Tiket terkunci belum dibalas*\n")
	for _, t := range tickets {
		b.WriteString(fmt.Sprintf("\n🆔 *%s* — dikunci oleh %s\n❓ %s\n",
			t.Code, lockOwnerLabel(t), t.Question))
	}
	return b.String()
}

func lockOwnerLabel(t *protocol.Ticket) string {
	if t.AgentDisplay != "" {
		return t.AgentDisplay
	}
	if t.LockedBy != "" {
		return "ID " + t.LockedBy
	}
	return "?"
}
