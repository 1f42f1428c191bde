package tabular

import (
	"fmt"
	"strings"
	"time"

	"github.com/mohamedelshamy95/CocoERP-sub000/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Table is a header-addressed view over one spreadsheet sheet. Columns are
// looked up by header name, never by position, so users can reorder or add
// columns without breaking an import. Header matching is case-insensitive
// with surrounding whitespace ignored.
type Table struct {
	Name    string
	headers map[string]int
	rows    [][]string
}

// dateLayouts accepted for date cells, tried in order. Spreadsheet exports
// are not consistent about this.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01-02-06",
	"1/2/2006",
	"2006/01/02",
	time.RFC3339,
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// LoadTable reads a sheet into a Table. The first non-empty row is the header
// row; everything after it is data.
func LoadTable(f *excelize.File, sheet, name string) (*Table, error) {
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	t := &Table{Name: name, headers: make(map[string]int)}
	headerAt := -1
	for i, row := range raw {
		if len(row) == 0 {
			continue
		}
		headerAt = i
		for col, h := range row {
			key := normalizeHeader(h)
			if key == "" {
				continue
			}
			if _, dup := t.headers[key]; !dup {
				t.headers[key] = col
			}
		}
		break
	}
	if headerAt >= 0 {
		t.rows = raw[headerAt+1:]
	}
	return t, nil
}

// Require verifies the named headers exist. The first missing header is
// returned as a SchemaError; an import never proceeds on a partial schema.
func (t *Table) Require(columns ...string) error {
	for _, c := range columns {
		if _, ok := t.headers[normalizeHeader(c)]; !ok {
			return &utils.SchemaError{Table: t.Name, Column: c}
		}
	}
	return nil
}

func (t *Table) Len() int { return len(t.rows) }

// Row returns a header-addressed accessor for data row i (0-based).
func (t *Table) Row(i int) Row {
	return Row{table: t, cells: t.rows[i]}
}

// Row reads one data row by header name. Cells past the row's ragged end
// read as empty, the way spreadsheet rows actually come back.
type Row struct {
	table *Table
	cells []string
}

func (r Row) Get(column string) string {
	col, ok := r.table.headers[normalizeHeader(column)]
	if !ok || col >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[col])
}

// Empty reports whether every mapped cell in the row is blank.
func (r Row) Empty() bool {
	for _, col := range r.table.headers {
		if col < len(r.cells) && strings.TrimSpace(r.cells[col]) != "" {
			return false
		}
	}
	return true
}

// Decimal parses a required numeric cell.
func (r Row) Decimal(column string) (decimal.Decimal, error) {
	d, err := utils.ParseDecimal(r.Get(column))
	if err != nil {
		return decimal.Zero, fmt.Errorf("column %q: %w", column, err)
	}
	return d, nil
}

// DecimalOrZero parses a numeric cell, treating blank as zero.
func (r Row) DecimalOrZero(column string) (decimal.Decimal, error) {
	d, err := utils.DecimalOrZero(r.Get(column))
	if err != nil {
		return decimal.Zero, fmt.Errorf("column %q: %w", column, err)
	}
	return d, nil
}

// DecimalPtr parses an optional numeric cell; blank yields nil.
func (r Row) DecimalPtr(column string) (*decimal.Decimal, error) {
	v := r.Get(column)
	if v == "" {
		return nil, nil
	}
	d, err := utils.ParseDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", column, err)
	}
	return &d, nil
}

// Date parses a required date cell against the accepted layouts.
func (r Row) Date(column string) (time.Time, error) {
	v := r.Get(column)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("column %q: unparseable date %q", column, v)
}

// DatePtr parses an optional date cell; blank yields nil.
func (r Row) DatePtr(column string) (*time.Time, error) {
	if r.Get(column) == "" {
		return nil, nil
	}
	t, err := r.Date(column)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
