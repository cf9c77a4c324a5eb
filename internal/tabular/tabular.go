package tabular

import (
	"context"
	"errors"
	"fmt"
)

// ErrRowNotFound reports that no row matched a key lookup.
var ErrRowNotFound = errors.New("tabular: row not found")

// ErrUnavailable reports that the backing store could not be reached.
// Callers distinguish it from ErrRowNotFound: an empty result is an
// answer, an unreachable store is not.
var ErrUnavailable = errors.New("tabular: store unavailable")

// Store is the row-oriented contract shared by all backends. A sheet is a
// named table of positional string cells. Row indexes are zero-based over
// data rows; header rows are a backend concern and never surface here.
//
// The only atomicity guarantee is that a single call is applied in full or
// not at all. There is no conditional write and no cross-call transaction;
// protocols built on top must carry their own check-and-set discipline.
type Store interface {
	// AppendRow adds a row at the end of the sheet.
	AppendRow(ctx context.Context, sheet string, values []string) error
	// FindRowByKey returns the index of the first row whose cell in column
	// col equals key, or ErrRowNotFound.
	FindRowByKey(ctx context.Context, sheet string, col int, key string) (int, error)
	// ReadRow returns the cells of one row.
	ReadRow(ctx context.Context, sheet string, row int) ([]string, error)
	// WriteRange overwrites the cells [startCol, endCol] of one row in a
	// single call.
	WriteRange(ctx context.Context, sheet string, row, startCol, endCol int, values []string) error
	// ReadAll returns every data row in insertion order.
	ReadAll(ctx context.Context, sheet string) ([][]string, error)
}

// unavailable wraps a backend failure so errors.Is(err, ErrUnavailable)
// holds while the cause stays visible.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// cell returns row[i] or "" when the row is short. Backends pad unevenly
// (Sheets trims trailing empties), so column access is always through this.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
