package tabular

import (
	"context"
	"fmt"
	"sync"
)

// MemStore is an in-memory Store. It backs tests and ephemeral runs, and
// its Fail switch simulates a store outage for degraded-mode testing.
type MemStore struct {
	mu     sync.Mutex
	sheets map[string][][]string

	// Fail, when true, makes every call return ErrUnavailable.
	Fail bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{sheets: make(map[string][][]string)}
}

// Seed replaces the contents of a sheet.
func (m *MemStore) Seed(sheet string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}
	m.sheets[sheet] = cp
}

func (m *MemStore) AppendRow(_ context.Context, sheet string, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return unavailable("mem: append", errSimulated)
	}
	m.sheets[sheet] = append(m.sheets[sheet], append([]string(nil), values...))
	return nil
}

func (m *MemStore) FindRowByKey(_ context.Context, sheet string, col int, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return 0, unavailable("mem: find", errSimulated)
	}
	for i, row := range m.sheets[sheet] {
		if cell(row, col) == key {
			return i, nil
		}
	}
	return 0, ErrRowNotFound
}

func (m *MemStore) ReadRow(_ context.Context, sheet string, row int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, unavailable("mem: read", errSimulated)
	}
	rows := m.sheets[sheet]
	if row < 0 || row >= len(rows) {
		return nil, ErrRowNotFound
	}
	return append([]string(nil), rows[row]...), nil
}

func (m *MemStore) WriteRange(_ context.Context, sheet string, row, startCol, endCol int, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return unavailable("mem: write", errSimulated)
	}
	rows := m.sheets[sheet]
	if row < 0 || row >= len(rows) {
		return ErrRowNotFound
	}
	if got, want := len(values), endCol-startCol+1; got != want {
		return fmt.Errorf("mem: write %s row %d: %d values for %d columns", sheet, row, got, want)
	}
	r := rows[row]
	for len(r) <= endCol {
		r = append(r, "")
	}
	copy(r[startCol:endCol+1], values)
	rows[row] = r
	return nil
}

func (m *MemStore) ReadAll(_ context.Context, sheet string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, unavailable("mem: read all", errSimulated)
	}
	rows := m.sheets[sheet]
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}
	return cp, nil
}

var errSimulated = fmt.Errorf("simulated outage")
