package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"github.com/tanya-io/tanya/pkg/protocol"
)

type recordingNotifier struct {
	calls []string
	fail  error
}

func (n *recordingNotifier) TicketSubmitted(_ context.Context, t *protocol.Ticket) error {
	n.calls = append(n.calls, "submitted:"+t.Code)
	return n.fail
}

func (n *recordingNotifier) TicketLocked(_ context.Context, t *protocol.Ticket, _ protocol.AgentIdentity) error {
	n.calls = append(n.calls, "locked:"+t.Code)
	return n.fail
}

func (n *recordingNotifier) DeliverReply(_ context.Context, t *protocol.Ticket, _ string) error {
	n.calls = append(n.calls, "replied:"+t.Code)
	return n.fail
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTicket() *protocol.Ticket {
	return &protocol.Ticket{Code: "K42", Alias: "Budi", Status: protocol.TicketPending}
}

func TestFanoutMirrorsEvents(t *testing.T) {
	primary := &recordingNotifier{}
	mirror := &recordingNotifier{}
	f := NewFanout(primary, discard(), mirror)
	ctx := context.Background()
	tk := sampleTicket()

	if err := f.TicketSubmitted(ctx, tk); err != nil {
		t.Fatalf("submitted: %v", err)
	}
	if err := f.TicketLocked(ctx, tk, protocol.NewAgentIdentity("9", "@dokter")); err != nil {
		t.Fatalf("locked: %v", err)
	}
	if err := f.DeliverReply(ctx, tk, "jawaban"); err != nil {
		t.Fatalf("replied: %v", err)
	}

	want := []string{"submitted:K42", "locked:K42", "replied:K42"}
	for _, n := range []*recordingNotifier{primary, mirror} {
		if len(n.calls) != len(want) {
			t.Fatalf("calls = %v, want %v", n.calls, want)
		}
		for i := range want {
			if n.calls[i] != want[i] {
				t.Fatalf("calls = %v, want %v", n.calls, want)
			}
		}
	}
}

func TestFanoutMirrorFailureSwallowed(t *testing.T) {
	primary := &recordingNotifier{}
	mirror := &recordingNotifier{fail: errors.New("slack down")}
	f := NewFanout(primary, discard(), mirror)

	if err := f.TicketSubmitted(context.Background(), sampleTicket()); err != nil {
		t.Fatalf("mirror failure leaked: %v", err)
	}
}

func TestFanoutPrimaryFailureReturned(t *testing.T) {
	boom := errors.New("transport down")
	primary := &recordingNotifier{fail: boom}
	mirror := &recordingNotifier{}
	f := NewFanout(primary, discard(), mirror)

	err := f.DeliverReply(context.Background(), sampleTicket(), "jawaban")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	// The reply never reached the user; the mirror must not claim it did.
	if len(mirror.calls) != 0 {
		t.Fatalf("mirror called despite failed delivery: %v", mirror.calls)
	}
}

type fakePoster struct {
	channel string
	texts   []string
	fail    error
}

func (p *fakePoster) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	if p.fail != nil {
		return "", "", p.fail
	}
	p.channel = channelID
	// MsgOption internals are opaque; recording the call is enough here.
	p.texts = append(p.texts, "posted")
	return channelID, "1", nil
}

func TestSlackMirrorPosts(t *testing.T) {
	poster := &fakePoster{}
	m := &SlackMirror{client: poster, channel: "C123"}

	if err := m.TicketSubmitted(context.Background(), sampleTicket()); err != nil {
		t.Fatalf("post: %v", err)
	}
	if poster.channel != "C123" || len(poster.texts) != 1 {
		t.Fatalf("poster = %+v", poster)
	}
}

func TestSlackMirrorWrapsError(t *testing.T) {
	poster := &fakePoster{fail: errors.New("rate limited")}
	m := &SlackMirror{client: poster, channel: "C123"}

	err := m.DeliverReply(context.Background(), sampleTicket(), "jawaban")
	if err == nil || !strings.Contains(err.Error(), "slack post") {
		t.Fatalf("err = %v", err)
	}
}
