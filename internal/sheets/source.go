// Package sheets reads a column of narration text from a Google Sheet.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/apresai/sheetvoice/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/sheets/v4"
)

// Source fetches the configured column window from one spreadsheet. There is
// no retry here: a run issues exactly one read.
type Source struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	sheetName     string
	column        string
	startRow      int
	endRow        *int
}

// NewSource validates the column letter and binds the read to svc.
func NewSource(svc *sheets.Service, cfg config.SheetsConfig) (*Source, error) {
	col := strings.ToUpper(strings.TrimSpace(cfg.TextColumn))
	if col == "" {
		col = config.DefaultTextColumn
	}
	if _, err := ColumnIndex(col); err != nil {
		return nil, err
	}
	start := cfg.StartRow
	if start == 0 {
		start = config.DefaultStartRow
	}
	return &Source{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		column:        col,
		startRow:      start,
		endRow:        cfg.EndRow,
	}, nil
}

// FetchTexts returns the trimmed, non-empty values of the column within the
// row window, in row order.
func (s *Source) FetchTexts(ctx context.Context) ([]string, error) {
	ctx, span := otel.Tracer("sheetvoice/sheets").Start(ctx, "sheets.FetchTexts")
	defer span.End()

	rng := A1Range(s.sheetName, s.column)
	span.SetAttributes(
		attribute.String("sheets.spreadsheet_id", s.spreadsheetID),
		attribute.String("sheets.range", rng),
	)
	slog.DebugContext(ctx, "reading spreadsheet column", "spreadsheet_id", s.spreadsheetID, "range", rng)

	resp, err := s.values.Get(s.spreadsheetID, rng).
		MajorDimension("COLUMNS").
		Context(ctx).
		Do()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("read %s from spreadsheet %s: %w", rng, s.spreadsheetID, err)
	}

	var column []string
	if len(resp.Values) > 0 {
		column = make([]string, len(resp.Values[0]))
		for i, v := range resp.Values[0] {
			column[i] = cellString(v)
		}
	}

	texts := Window(column, s.startRow, s.endRow)
	span.SetAttributes(attribute.Int("sheets.rows", len(column)), attribute.Int("sheets.texts", len(texts)))
	return texts, nil
}

// A1Range builds a whole-column range. An empty sheet name addresses the
// first sheet.
func A1Range(sheetName, column string) string {
	if sheetName == "" {
		return column + ":" + column
	}
	quoted := "'" + strings.ReplaceAll(sheetName, "'", "''") + "'"
	return quoted + "!" + column + ":" + column
}

// Window selects rows start..end (1-based, inclusive) from a column that
// begins at row 1, trims each value and drops empty ones. A nil end reads to
// the last value.
func Window(column []string, start int, end *int) []string {
	if start < 1 {
		start = 1
	}
	lo := start - 1
	hi := len(column)
	if end != nil && *end < hi {
		hi = *end
	}
	if lo >= hi {
		return nil
	}

	var texts []string
	for _, v := range column[lo:hi] {
		if t := strings.TrimSpace(v); t != "" {
			texts = append(texts, t)
		}
	}
	return texts
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
