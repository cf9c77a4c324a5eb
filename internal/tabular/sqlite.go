package tabular

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database. Every sheet
// lives in one relation keyed by (sheet, row_idx) with JSON-encoded cells,
// preserving the positional row contract of the hosted backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tabular: open: %w", err)
	}

	// WAL keeps concurrent readers out of the writers' way
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("tabular: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sheet_rows (
			sheet   TEXT    NOT NULL,
			row_idx INTEGER NOT NULL,
			cells   TEXT    NOT NULL,
			PRIMARY KEY (sheet, row_idx)
		);
	`)
	if err != nil {
		return fmt.Errorf("tabular: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendRow(ctx context.Context, sheet string, values []string) error {
	cells, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("tabular: encode row: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sheet_rows (sheet, row_idx, cells)
		VALUES (?, (SELECT COALESCE(MAX(row_idx)+1, 0) FROM sheet_rows WHERE sheet = ?), ?)
	`, sheet, sheet, string(cells))
	if err != nil {
		return unavailable(fmt.Sprintf("sqlite: append %s", sheet), err)
	}
	return nil
}

func (s *SQLiteStore) FindRowByKey(ctx context.Context, sheet string, col int, key string) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_idx, cells FROM sheet_rows WHERE sheet = ? ORDER BY row_idx`, sheet)
	if err != nil {
		return 0, unavailable(fmt.Sprintf("sqlite: find in %s", sheet), err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx int
		var cellsJSON string
		if err := rows.Scan(&idx, &cellsJSON); err != nil {
			return 0, unavailable(fmt.Sprintf("sqlite: scan %s", sheet), err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
			return 0, fmt.Errorf("tabular: decode row %d in %s: %w", idx, sheet, err)
		}
		if cell(cells, col) == key {
			return idx, nil
		}
	}
	if err := rows.Err(); err != nil {
		return 0, unavailable(fmt.Sprintf("sqlite: find in %s", sheet), err)
	}
	return 0, ErrRowNotFound
}

func (s *SQLiteStore) ReadRow(ctx context.Context, sheet string, row int) ([]string, error) {
	var cellsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT cells FROM sheet_rows WHERE sheet = ? AND row_idx = ?`, sheet, row).Scan(&cellsJSON)
	if err == sql.ErrNoRows {
		return nil, ErrRowNotFound
	}
	if err != nil {
		return nil, unavailable(fmt.Sprintf("sqlite: read %s row %d", sheet, row), err)
	}
	var cells []string
	if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
		return nil, fmt.Errorf("tabular: decode row %d in %s: %w", row, sheet, err)
	}
	return cells, nil
}

// WriteRange patches one row inside a transaction. The contract only
// promises that the single call lands in full; the transaction here
// additionally narrows (without closing) the read-modify-write window
// for callers running against the same local database.
func (s *SQLiteStore) WriteRange(ctx context.Context, sheet string, row, startCol, endCol int, values []string) error {
	if got, want := len(values), endCol-startCol+1; got != want {
		return fmt.Errorf("tabular: write %s row %d: %d values for %d columns", sheet, row, got, want)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(fmt.Sprintf("sqlite: write %s row %d", sheet, row), err)
	}
	defer tx.Rollback()

	var cellsJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT cells FROM sheet_rows WHERE sheet = ? AND row_idx = ?`, sheet, row).Scan(&cellsJSON)
	if err == sql.ErrNoRows {
		return ErrRowNotFound
	}
	if err != nil {
		return unavailable(fmt.Sprintf("sqlite: write %s row %d", sheet, row), err)
	}

	var cells []string
	if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
		return fmt.Errorf("tabular: decode row %d in %s: %w", row, sheet, err)
	}
	for len(cells) <= endCol {
		cells = append(cells, "")
	}
	copy(cells[startCol:endCol+1], values)

	updated, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("tabular: encode row: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sheet_rows SET cells = ? WHERE sheet = ? AND row_idx = ?`,
		string(updated), sheet, row); err != nil {
		return unavailable(fmt.Sprintf("sqlite: write %s row %d", sheet, row), err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable(fmt.Sprintf("sqlite: write %s row %d", sheet, row), err)
	}
	return nil
}

func (s *SQLiteStore) ReadAll(ctx context.Context, sheet string) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY row_idx`, sheet)
	if err != nil {
		return nil, unavailable(fmt.Sprintf("sqlite: read all %s", sheet), err)
	}
	defer rows.Close()

	var all [][]string
	for rows.Next() {
		var cellsJSON string
		if err := rows.Scan(&cellsJSON); err != nil {
			return nil, unavailable(fmt.Sprintf("sqlite: read all %s", sheet), err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
			return nil, fmt.Errorf("tabular: decode row in %s: %w", sheet, err)
		}
		all = append(all, cells)
	}
	return all, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection (for testing).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}
