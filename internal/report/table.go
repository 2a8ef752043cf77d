package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/goccy/go-json"
)

// ErrRowShape is returned when a row does not have one value per column.
var ErrRowShape = errors.New("row length does not match headers")

// Kind tells dimension columns from metric columns.
type Kind int

const (
	KindDimension Kind = iota
	KindMetric
)

func (k Kind) String() string {
	if k == KindMetric {
		return "metric"
	}
	return "dimension"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "dimension":
		*k = KindDimension
	case "metric":
		*k = KindMetric
	default:
		return fmt.Errorf("unknown column kind %q", b)
	}
	return nil
}

// Column is one named header.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Schema is an ordered association list of columns. A column's position in
// the list is its position in every row, and appending never reorders
// existing columns.
type Schema struct {
	cols []Column
}

// NewSchema lays out dimension columns followed by metric columns.
func NewSchema(dims, metrics []string) Schema {
	cols := make([]Column, 0, len(dims)+len(metrics))
	for _, d := range dims {
		cols = append(cols, Column{Name: d, Kind: KindDimension})
	}
	for _, m := range metrics {
		cols = append(cols, Column{Name: m, Kind: KindMetric})
	}
	return Schema{cols: cols}
}

func (s Schema) Len() int { return len(s.cols) }

// Columns returns a copy of the column list.
func (s Schema) Columns() []Column { return slices.Clone(s.cols) }

// Index returns the position of the named column or -1.
func (s Schema) Index(name string) int {
	return slices.IndexFunc(s.cols, func(c Column) bool { return c.Name == name })
}

// DimensionIndex returns the position of the named dimension column or -1.
func (s Schema) DimensionIndex(name string) int {
	return slices.IndexFunc(s.cols, func(c Column) bool { return c.Name == name && c.Kind == KindDimension })
}

// Append returns a new schema with cols added at the end.
func (s Schema) Append(cols ...Column) Schema {
	out := make([]Column, 0, len(s.cols)+len(cols))
	out = append(out, s.cols...)
	out = append(out, cols...)
	return Schema{cols: out}
}

func (s Schema) names(kind Kind, all bool) []string {
	out := make([]string, 0, len(s.cols))
	for _, c := range s.cols {
		if all || c.Kind == kind {
			out = append(out, c.Name)
		}
	}
	return out
}

// Table is a report result. Rows keep provider order.
type Table struct {
	Schema Schema
	Rows   [][]string
	// RowCount is the total reported by the provider, which may exceed len(Rows).
	RowCount int
	// Warnings lists sub-requests whose columns are missing from a joined table.
	Warnings []string
}

// NewTable builds a table whose columns are dims followed by metrics.
func NewTable(dims, metrics []string, rows [][]string) *Table {
	return &Table{Schema: NewSchema(dims, metrics), Rows: rows, RowCount: len(rows)}
}

// Headers returns every column name in row order.
func (t *Table) Headers() []string { return t.Schema.names(0, true) }

func (t *Table) DimensionHeaders() []string { return t.Schema.names(KindDimension, false) }

func (t *Table) MetricHeaders() []string { return t.Schema.names(KindMetric, false) }

// Value returns the cell of row i in the named column.
func (t *Table) Value(i int, name string) (string, bool) {
	col := t.Schema.Index(name)
	if col < 0 || i < 0 || i >= len(t.Rows) || col >= len(t.Rows[i]) {
		return "", false
	}
	return t.Rows[i][col], true
}

// Validate checks that every row has one value per column.
func (t *Table) Validate() error {
	for i, row := range t.Rows {
		if len(row) != t.Schema.Len() {
			return fmt.Errorf("row %d has %d values for %d columns: %w", i, len(row), t.Schema.Len(), ErrRowShape)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = slices.Clone(r)
	}
	return &Table{
		Schema:   Schema{cols: slices.Clone(t.Schema.cols)},
		Rows:     rows,
		RowCount: t.RowCount,
		Warnings: slices.Clone(t.Warnings),
	}
}

type tableJSON struct {
	Columns          []Column   `json:"columns"`
	DimensionHeaders []string   `json:"dimension_headers"`
	MetricHeaders    []string   `json:"metric_headers"`
	Rows             [][]string `json:"rows"`
	RowCount         int        `json:"row_count"`
	Warnings         []string   `json:"warnings,omitempty"`
}

func (t *Table) MarshalJSON() ([]byte, error) {
	rows := t.Rows
	if rows == nil {
		rows = [][]string{}
	}
	return json.Marshal(tableJSON{
		Columns:          t.Schema.cols,
		DimensionHeaders: t.DimensionHeaders(),
		MetricHeaders:    t.MetricHeaders(),
		Rows:             rows,
		RowCount:         t.RowCount,
		Warnings:         t.Warnings,
	})
}

func (t *Table) UnmarshalJSON(data []byte) error {
	var raw tableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Schema = Schema{cols: raw.Columns}
	t.Rows = raw.Rows
	t.RowCount = raw.RowCount
	t.Warnings = raw.Warnings
	return t.Validate()
}

// WriteCSV writes a header line followed by every row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers()); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}
