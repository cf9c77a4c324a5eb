// Package risk implements the yes/no risk self-check: quiz progression,
// scoring, and result persistence.
package risk

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tanya-io/tanya/internal/tabular"
)

// HighThreshold is the score at which the verdict flips to high risk.
const HighThreshold = 3

// Quiz walks a user through the configured questions, one yes/no at a
// time. It is a value held in dialog state, not shared.
type Quiz struct {
	questions []string
	idx       int
	score     int
}

// NewQuiz starts a quiz over the given questions.
func NewQuiz(questions []string) *Quiz {
	return &Quiz{questions: questions}
}

// Current returns the question to ask next, or false when the quiz is done.
func (q *Quiz) Current() (string, bool) {
	if q.idx >= len(q.questions) {
		return "", false
	}
	return q.questions[q.idx], true
}

// Answer records one yes/no answer and advances.
func (q *Quiz) Answer(yes bool) {
	if q.idx >= len(q.questions) {
		return
	}
	if yes {
		q.score++
	}
	q.idx++
}

// Done reports whether every question has been answered.
func (q *Quiz) Done() bool {
	return q.idx >= len(q.questions)
}

// Score returns the number of yes answers so far.
func (q *Quiz) Score() int {
	return q.score
}

// Verdict returns the user-facing result line for a final score.
func Verdict(score int) string {
	if score >= HighThreshold {
		return "❗Pian Risiko Tinggi (Segera Tes & Konsultasi Admin)"
	}
	return "✅ Resiko Pian Rendah, Tetap Pertahankan"
}

// Recorder appends finished quiz results to the results sheet. Failures
// are logged by callers, never surfaced to the user; the verdict was
// already shown.
type Recorder struct {
	tab   tabular.Store
	sheet string
}

// NewRecorder binds a recorder to the results sheet.
func NewRecorder(tab tabular.Store, sheet string) *Recorder {
	return &Recorder{tab: tab, sheet: sheet}
}

// Record persists one result row.
func (r *Recorder) Record(ctx context.Context, alias, age, locality string, score int) error {
	row := []string{
		time.Now().Format("2006-01-02 15:04:05"),
		alias,
		age,
		strconv.Itoa(score),
		Verdict(score),
		locality,
	}
	if err := r.tab.AppendRow(ctx, r.sheet, row); err != nil {
		return fmt.Errorf("risk: record: %w", err)
	}
	return nil
}
