package tabular

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const defaultSheetsTimeout = 10 * time.Second

// SheetsStore implements Store on a Google Sheets spreadsheet. Row 1 of
// every worksheet is a header; data row 0 here is sheet row 2 there.
//
// The Sheets API has no conditional write and no transaction. Each call
// is applied in full or fails, which is exactly the contract Store
// promises and nothing more.
type SheetsStore struct {
	srv           *sheets.Service
	spreadsheetID string
	timeout       time.Duration
}

// SheetsConfig holds what is needed to reach one spreadsheet.
type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsJSON []byte        // service-account key
	Timeout         time.Duration // per-call bound, default 10s
}

// NewSheetsStore authenticates with the service-account key and binds to
// the configured spreadsheet.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig) (*SheetsStore, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id is required")
	}
	conf, err := google.JWTConfigFromJSON(cfg.CredentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("sheets: parse credentials: %w", err)
	}
	srv, err := sheets.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("sheets: init service: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSheetsTimeout
	}
	return &SheetsStore{srv: srv, spreadsheetID: cfg.SpreadsheetID, timeout: timeout}, nil
}

func (s *SheetsStore) AppendRow(ctx context.Context, sheet string, values []string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(values)}}
	_, err := s.srv.Spreadsheets.Values.
		Append(s.spreadsheetID, sheet+"!A1", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return unavailable(fmt.Sprintf("sheets: append %s", sheet), err)
	}
	return nil
}

func (s *SheetsStore) FindRowByKey(ctx context.Context, sheet string, col int, key string) (int, error) {
	rows, err := s.ReadAll(ctx, sheet)
	if err != nil {
		return 0, err
	}
	for i, row := range rows {
		if cell(row, col) == key {
			return i, nil
		}
	}
	return 0, ErrRowNotFound
}

func (s *SheetsStore) ReadRow(ctx context.Context, sheet string, row int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rng := fmt.Sprintf("%s!%d:%d", sheet, row+2, row+2)
	resp, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, unavailable(fmt.Sprintf("sheets: read %s row %d", sheet, row), err)
	}
	if len(resp.Values) == 0 {
		return nil, ErrRowNotFound
	}
	return fromCells(resp.Values[0]), nil
}

func (s *SheetsStore) WriteRange(ctx context.Context, sheet string, row, startCol, endCol int, values []string) error {
	if got, want := len(values), endCol-startCol+1; got != want {
		return fmt.Errorf("sheets: write %s row %d: %d values for %d columns", sheet, row, got, want)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rng := fmt.Sprintf("%s!%s%d:%s%d", sheet, colName(startCol), row+2, colName(endCol), row+2)
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(values)}}
	_, err := s.srv.Spreadsheets.Values.
		Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return unavailable(fmt.Sprintf("sheets: write %s row %d", sheet, row), err)
	}
	return nil
}

func (s *SheetsStore) ReadAll(ctx context.Context, sheet string) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, sheet).Context(ctx).Do()
	if err != nil {
		return nil, unavailable(fmt.Sprintf("sheets: read all %s", sheet), err)
	}
	if len(resp.Values) <= 1 {
		return nil, nil
	}
	// drop the header row
	rows := make([][]string, 0, len(resp.Values)-1)
	for _, r := range resp.Values[1:] {
		rows = append(rows, fromCells(r))
	}
	return rows, nil
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func fromCells(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = fmt.Sprintf("%v", c)
	}
	return out
}

// colName converts a zero-based column index to its A1 letter form.
func colName(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}
