package expense

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// SheetsLedger keeps each partition in a worksheet of one spreadsheet.
// Missing worksheets are duplicated from the template worksheet.
type SheetsLedger struct {
	svc           *sheets.Service
	spreadsheetID string
	template      string

	// Serializes partition creation so concurrent appends do not both
	// duplicate the template.
	mu sync.Mutex
}

// NewSheetsLedger connects to the Sheets API. Without explicit options
// application default credentials are used.
func NewSheetsLedger(ctx context.Context, spreadsheetID, template string, opts ...option.ClientOption) (*SheetsLedger, error) {
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return &SheetsLedger{svc: svc, spreadsheetID: spreadsheetID, template: template}, nil
}

func (l *SheetsLedger) Append(ctx context.Context, partition string, rec Record) error {
	if err := checkPartition(partition); err != nil {
		return err
	}
	if err := l.ensure(ctx, partition); err != nil {
		return err
	}

	cells := rec.Cells()
	row := make([]any, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	// Amount is written as a number so sheet formulas can sum it.
	row[3] = rec.Amount

	_, err := l.svc.Spreadsheets.Values.Append(l.spreadsheetID, partition+"!A1", &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", partition, err)
	}
	return nil
}

func (l *SheetsLedger) Rows(ctx context.Context, partition string) ([]Row, error) {
	if err := checkPartition(partition); err != nil {
		return nil, err
	}
	titles, err := l.sheetIDs(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := titles[partition]; !ok {
		return nil, fmt.Errorf("%s: %w", partition, ErrNoPartition)
	}

	vr, err := l.svc.Spreadsheets.Values.Get(l.spreadsheetID, partition).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", partition, err)
	}
	if len(vr.Values) == 0 {
		return nil, nil
	}

	header := make([]string, len(vr.Values[0]))
	for i, h := range vr.Values[0] {
		header[i] = fmt.Sprint(h)
	}
	out := make([]Row, 0, len(vr.Values)-1)
	for _, values := range vr.Values[1:] {
		row := make(Row, len(header))
		for i, name := range header {
			if i < len(values) {
				row[name] = fmt.Sprint(values[i])
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (l *SheetsLedger) ensure(ctx context.Context, partition string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.sheetIDs(ctx)
	if err != nil {
		return err
	}
	if _, ok := ids[partition]; ok {
		return nil
	}
	templateID, ok := ids[l.template]
	if !ok {
		return ErrNoTemplate
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DuplicateSheet: &sheets.DuplicateSheetRequest{
				SourceSheetId: templateID,
				NewSheetName:  partition,
			},
		}},
	}
	if _, err := l.svc.Spreadsheets.BatchUpdate(l.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("duplicate template into %s: %w", partition, err)
	}
	return nil
}

// sheetIDs maps worksheet titles to sheet IDs.
func (l *SheetsLedger) sheetIDs(ctx context.Context) (map[string]int64, error) {
	ss, err := l.svc.Spreadsheets.Get(l.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	out := make(map[string]int64, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			out[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	return out, nil
}
