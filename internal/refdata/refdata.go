// Package refdata loads the read-only reference tables that live next to
// the ticket sheet: FAQ entries, the agent contact roster, risk-quiz
// questions and education media. String-keyed rows are mapped to typed
// records here; nothing above this package sees positional cells.
package refdata

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tanya-io/tanya/internal/tabular"
)

// Sheets names the reference worksheets inside the shared store.
type Sheets struct {
	FAQ           string
	Agents        string
	RiskQuestions string
	Media         string
	RiskResults   string
}

// DefaultSheets matches the worksheet names of the production spreadsheet.
func DefaultSheets() Sheets {
	return Sheets{
		FAQ:           "FAQ",
		Agents:        "Admin",
		RiskQuestions: "Pertanyaan_Risiko",
		Media:         "Media_Edukasi",
		RiskResults:   "Risiko",
	}
}

// FAQEntry is one question/answer pair.
type FAQEntry struct {
	Question string
	Answer   string
}

// AgentContact is one roster entry for direct user-to-agent contact.
type AgentContact struct {
	Name      string
	Contact   string // Telegram handle or phone number
	Transport string // "Telegram" or anything else (treated as WhatsApp)
	Active    bool
}

// ContactURL builds the deep link that opens a chat with the agent,
// prefilled with the greeting.
func (a AgentContact) ContactURL(greeting string) string {
	text := url.QueryEscape(greeting)
	if strings.EqualFold(a.Transport, "Telegram") {
		return fmt.Sprintf("https://t.me/%s?text=%s", a.Contact, text)
	}
	return fmt.Sprintf("https://wa.me/%s?text=%s", a.Contact, text)
}

// MediaEntry is one education media item.
type MediaEntry struct {
	Title       string
	Description string
	Link        string
}

// Source reads the reference tables. All reads go straight to the store;
// reference data is small and editors expect changes to show up on the
// next request.
type Source struct {
	tab    tabular.Store
	sheets Sheets
}

// NewSource binds a reference-data source to the tabular store.
func NewSource(tab tabular.Store, sheets Sheets) *Source {
	return &Source{tab: tab, sheets: sheets}
}

// FAQ returns all FAQ entries with a non-empty question.
func (s *Source) FAQ(ctx context.Context) ([]FAQEntry, error) {
	rows, err := s.tab.ReadAll(ctx, s.sheets.FAQ)
	if err != nil {
		return nil, fmt.Errorf("refdata: faq: %w", err)
	}
	var out []FAQEntry
	for _, r := range rows {
		e := FAQEntry{Question: col(r, 0), Answer: col(r, 1)}
		if e.Question == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ActiveAgents returns the roster entries whose status is "aktif".
func (s *Source) ActiveAgents(ctx context.Context) ([]AgentContact, error) {
	rows, err := s.tab.ReadAll(ctx, s.sheets.Agents)
	if err != nil {
		return nil, fmt.Errorf("refdata: agents: %w", err)
	}
	var out []AgentContact
	for _, r := range rows {
		a := AgentContact{
			Name:      col(r, 0),
			Contact:   col(r, 1),
			Transport: col(r, 2),
			Active:    strings.EqualFold(strings.TrimSpace(col(r, 3)), "aktif"),
		}
		if !a.Active || a.Contact == "" {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// RiskQuestions returns the quiz questions in sheet order.
func (s *Source) RiskQuestions(ctx context.Context) ([]string, error) {
	rows, err := s.tab.ReadAll(ctx, s.sheets.RiskQuestions)
	if err != nil {
		return nil, fmt.Errorf("refdata: risk questions: %w", err)
	}
	var out []string
	for _, r := range rows {
		if q := col(r, 0); q != "" {
			out = append(out, q)
		}
	}
	return out, nil
}

// Media returns the active education media entries.
func (s *Source) Media(ctx context.Context) ([]MediaEntry, error) {
	rows, err := s.tab.ReadAll(ctx, s.sheets.Media)
	if err != nil {
		return nil, fmt.Errorf("refdata: media: %w", err)
	}
	var out []MediaEntry
	for _, r := range rows {
		if !strings.EqualFold(strings.TrimSpace(col(r, 3)), "aktif") {
			continue
		}
		m := MediaEntry{
			Title:       col(r, 0),
			Description: col(r, 1),
			Link:        col(r, 2),
		}
		if m.Title == "" {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func col(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}
