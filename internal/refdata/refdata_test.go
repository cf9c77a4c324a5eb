package refdata

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tanya-io/tanya/internal/tabular"
)

func newSource(t *testing.T) (*Source, *tabular.MemStore) {
	t.Helper()
	mem := tabular.NewMemStore()
	return NewSource(mem, DefaultSheets()), mem
}

func TestFAQ(t *testing.T) {
	s, mem := newSource(t)
	mem.Seed("FAQ", [][]string{
		{"Apa itu?", "Penjelasan."},
		{"", "jawaban tanpa pertanyaan"},
		{"Pertanyaan kedua"},
	})

	got, err := s.FAQ(context.Background())
	if err != nil {
		t.Fatalf("faq: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Answer != "Penjelasan." {
		t.Errorf("unexpected answer %q", got[0].Answer)
	}
	if got[1].Answer != "" {
		t.Errorf("missing answer must decode empty, got %q", got[1].Answer)
	}
}

func TestActiveAgents(t *testing.T) {
	s, mem := newSource(t)
	mem.Seed("Admin", [][]string{
		{"Dina", "kak_dina", "Telegram", "aktif"},
		{"Rudi", "6281234", "WhatsApp", "Aktif"},
		{"Lama", "gone", "Telegram", "nonaktif"},
		{"Kosong", "", "Telegram", "aktif"},
	})

	got, err := s.ActiveAgents(context.Background())
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 active agents, got %d", len(got))
	}
	if got[0].Name != "Dina" || got[1].Name != "Rudi" {
		t.Errorf("unexpected roster %v", got)
	}
}

func TestContactURL(t *testing.T) {
	tg := AgentContact{Contact: "kak_dina", Transport: "Telegram"}
	u := tg.ContactURL("Halo, saya Budi (25 tahun)")
	if !strings.HasPrefix(u, "https://t.me/kak_dina?text=") {
		t.Errorf("unexpected telegram url %q", u)
	}
	if strings.Contains(u, " ") {
		t.Errorf("greeting must be escaped: %q", u)
	}

	wa := AgentContact{Contact: "6281234", Transport: "WhatsApp"}
	if u := wa.ContactURL("hi"); !strings.HasPrefix(u, "https://wa.me/6281234?text=") {
		t.Errorf("unexpected whatsapp url %q", u)
	}
}

func TestRiskQuestionsSkipEmpty(t *testing.T) {
	s, mem := newSource(t)
	mem.Seed("Pertanyaan_Risiko", [][]string{
		{"Q1"}, {""}, {"Q2"},
	})
	got, err := s.RiskQuestions(context.Background())
	if err != nil {
		t.Fatalf("risk questions: %v", err)
	}
	if len(got) != 2 || got[0] != "Q1" || got[1] != "Q2" {
		t.Errorf("unexpected questions %v", got)
	}
}

func TestMediaActiveOnly(t *testing.T) {
	s, mem := newSource(t)
	mem.Seed("Media_Edukasi", [][]string{
		{"Judul A", "Desc A", "https://a.example", "aktif"},
		{"Judul B", "Desc B", "https://b.example", "draft"},
	})
	got, err := s.Media(context.Background())
	if err != nil {
		t.Fatalf("media: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Judul A" {
		t.Errorf("unexpected media %v", got)
	}
}

func TestStoreUnavailablePropagates(t *testing.T) {
	s, mem := newSource(t)
	mem.Fail = true
	if _, err := s.FAQ(context.Background()); !errors.Is(err, tabular.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
