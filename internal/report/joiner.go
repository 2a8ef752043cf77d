package report

import (
	"errors"
	"fmt"
	"slices"
)

// Placeholder fills cells a joined table has no value for.
const Placeholder = ""

var (
	ErrNoTables        = errors.New("no tables to join")
	ErrJoinKeyMissing  = errors.New("join key missing from table headers")
	ErrDuplicateColumn = errors.New("column already present in joined table")
)

// Join merges tables that share the joinKey dimension into one table. The
// first table is the base: its columns and rows come first and its metric
// values are the only ones kept. Every later table contributes its non-key
// dimension columns, appended after the existing ones. A later row fills the
// first base row with the same key that it has not filled yet; a row with no
// such base row becomes a new row holding only the key and that table's
// values, appended after all existing rows. Inputs are never modified.
func Join(tables []*Table, joinKey string) (*Table, error) {
	switch len(tables) {
	case 0:
		return nil, ErrNoTables
	case 1:
		return tables[0], nil
	}

	acc := tables[0]
	for i, next := range tables[1:] {
		joined, err := joinPair(acc, next, joinKey)
		if err != nil {
			return nil, fmt.Errorf("join table %d: %w", i+1, err)
		}
		acc = joined
	}
	return acc, nil
}

func joinPair(base, next *Table, joinKey string) (*Table, error) {
	baseKey := base.Schema.DimensionIndex(joinKey)
	if baseKey < 0 {
		return nil, fmt.Errorf("base table: %w: %s", ErrJoinKeyMissing, joinKey)
	}
	nextKey := next.Schema.DimensionIndex(joinKey)
	if nextKey < 0 {
		return nil, fmt.Errorf("%w: %s", ErrJoinKeyMissing, joinKey)
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	// source positions in next for each column added to the output
	var added []Column
	var sourceCols []int
	for i, c := range next.Schema.cols {
		if c.Kind != KindDimension || c.Name == joinKey {
			continue
		}
		if base.Schema.Index(c.Name) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name)
		}
		added = append(added, c)
		sourceCols = append(sourceCols, i)
	}

	schema := base.Schema.Append(added...)
	width := schema.Len()
	offset := base.Schema.Len()

	rows := make([][]string, 0, len(base.Rows)+len(next.Rows))
	byKey := make(map[string][]int, len(base.Rows))
	for i, r := range base.Rows {
		if len(r) != offset {
			return nil, fmt.Errorf("base row %d: %w", i, ErrRowShape)
		}
		row := make([]string, width)
		copy(row, r)
		for j := offset; j < width; j++ {
			row[j] = Placeholder
		}
		rows = append(rows, row)
		byKey[r[baseKey]] = append(byKey[r[baseKey]], i)
	}

	used := make(map[string]int, len(byKey))
	for _, r := range next.Rows {
		key := r[nextKey]

		var target []string
		if idx := byKey[key]; used[key] < len(idx) {
			target = rows[idx[used[key]]]
			used[key]++
		} else {
			target = make([]string, width)
			for j := range target {
				target[j] = Placeholder
			}
			target[baseKey] = key
			rows = append(rows, target)
		}

		for j, src := range sourceCols {
			target[offset+j] = r[src]
		}
	}

	return &Table{
		Schema:   schema,
		Rows:     rows,
		RowCount: len(rows),
		Warnings: slices.Clone(base.Warnings),
	}, nil
}
