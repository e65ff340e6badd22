package join

import (
	"sort"

	"github.com/wbrown/janus-join/relation"
)

const (
	// RowKeyColumn is the reserved join column name that refers to the row key.
	RowKeyColumn = "$RowID$"
	// RowOffsetColumn holds a row's physical offset in working tables and in
	// inputs joined with Options.ExtractRowOffsets.
	RowOffsetColumn = "$RowOffset$"

	rowKeyIndex = -1
)

// TableSettings binds one side of a join to a table: its join clause columns,
// the columns it contributes to the output, and whether its unmatched rows are
// retained.
type TableSettings struct {
	side            Side
	table           relation.Table
	columns         []string
	joinColumns     []string
	includeColumns  []string
	retainUnmatched bool

	joinIndices    []int
	includeIndices []int
	offsetIndex    int

	// set on condensed settings only
	materialize []int
}

// NewTableSettings creates settings for one side of a join over table. Join
// columns are listed in clause order and may use RowKeyColumn. Included
// columns are output in table column order, duplicates removed.
func NewTableSettings(side Side, table relation.Table, joinColumns, includeColumns []string, retainUnmatched bool) (*TableSettings, error) {
	if table == nil {
		return nil, invalidf("%s table is missing", side)
	}
	return newSettings(side, table, table.Columns(), joinColumns, includeColumns, retainUnmatched)
}

// NewSettingsForColumns creates settings over a column list without a table.
// Such settings describe output shapes but cannot be joined.
func NewSettingsForColumns(side Side, columns, joinColumns, includeColumns []string, retainUnmatched bool) (*TableSettings, error) {
	return newSettings(side, nil, columns, joinColumns, includeColumns, retainUnmatched)
}

func newSettings(side Side, table relation.Table, columns, joinColumns, includeColumns []string, retainUnmatched bool) (*TableSettings, error) {
	s := &TableSettings{
		side:            side,
		table:           table,
		columns:         columns,
		joinColumns:     append([]string(nil), joinColumns...),
		retainUnmatched: retainUnmatched,
		offsetIndex:     -1,
	}

	s.joinIndices = make([]int, len(joinColumns))
	for i, name := range joinColumns {
		if name == RowKeyColumn {
			s.joinIndices[i] = rowKeyIndex
			continue
		}
		idx := relation.ColumnIndex(columns, name)
		if idx < 0 {
			return nil, invalidf("join column %q is not in the %s table %v", name, side, columns)
		}
		s.joinIndices[i] = idx
	}

	seen := make(map[int]bool, len(includeColumns))
	for _, name := range includeColumns {
		idx := relation.ColumnIndex(columns, name)
		if idx < 0 {
			return nil, invalidf("include column %q is not in the %s table %v", name, side, columns)
		}
		if !seen[idx] {
			seen[idx] = true
			s.includeIndices = append(s.includeIndices, idx)
		}
	}
	sort.Ints(s.includeIndices)
	s.includeColumns = make([]string, len(s.includeIndices))
	for i, idx := range s.includeIndices {
		s.includeColumns[i] = columns[idx]
	}

	return s, nil
}

// Side returns the side these settings were created for.
func (s *TableSettings) Side() Side { return s.side }

// Table returns the bound table, or nil.
func (s *TableSettings) Table() relation.Table { return s.table }

// Columns returns the column names of the bound table.
func (s *TableSettings) Columns() []string { return s.columns }

// JoinColumns returns the join clause columns in clause order.
func (s *TableSettings) JoinColumns() []string { return s.joinColumns }

// IncludeColumns returns the included columns in table order.
func (s *TableSettings) IncludeColumns() []string { return s.includeColumns }

// RetainUnmatched reports whether unmatched rows of this side are output.
func (s *TableSettings) RetainUnmatched() bool { return s.retainUnmatched }

// NumJoinClauses returns the number of join clause columns.
func (s *TableSettings) NumJoinClauses() int { return len(s.joinColumns) }

// Get returns the row's join values in clause order; the row key is returned
// as a string for RowKeyColumn.
func (s *TableSettings) Get(row relation.Row) []relation.Value {
	values := make([]relation.Value, len(s.joinIndices))
	for i, idx := range s.joinIndices {
		values[i] = s.cell(row, idx)
	}
	return values
}

func (s *TableSettings) cell(row relation.Row, idx int) relation.Value {
	if idx == rowKeyIndex {
		return string(row.Key)
	}
	return row.Values[idx]
}

// Offset returns the row offset stored in a condensed row, or -1.
func (s *TableSettings) Offset(row relation.Row) int64 {
	if s.offsetIndex < 0 {
		return -1
	}
	if off, ok := row.Values[s.offsetIndex].(int64); ok {
		return off
	}
	return -1
}

// WithRetainUnmatched returns a copy with a different retain flag.
func (s *TableSettings) WithRetainUnmatched(retain bool) *TableSettings {
	c := *s
	c.retainUnmatched = retain
	return &c
}

// UsingOnlyJoinClause returns a copy that keeps only the i-th join clause.
func (s *TableSettings) UsingOnlyJoinClause(i int) *TableSettings {
	c := *s
	c.joinColumns = []string{s.joinColumns[i]}
	c.joinIndices = []int{s.joinIndices[i]}
	return &c
}

// Condensed returns settings over a working table that holds only the join
// and included columns, in their original order, optionally followed by a
// RowOffsetColumn. Use CondenseRow to project source rows into that shape.
// s itself must not be condensed.
func (s *TableSettings) Condensed(storeRowOffsets bool) *TableSettings {
	keep := make(map[int]bool)
	for _, idx := range s.joinIndices {
		if idx != rowKeyIndex {
			keep[idx] = true
		}
	}
	for _, idx := range s.includeIndices {
		keep[idx] = true
	}

	c := &TableSettings{
		side:            s.side,
		table:           s.table,
		joinColumns:     s.joinColumns,
		includeColumns:  s.includeColumns,
		retainUnmatched: s.retainUnmatched,
		offsetIndex:     -1,
	}
	for idx, name := range s.columns {
		if keep[idx] {
			c.materialize = append(c.materialize, idx)
			c.columns = append(c.columns, name)
		}
	}
	if storeRowOffsets {
		c.offsetIndex = len(c.columns)
		c.columns = append(c.columns, RowOffsetColumn)
	}

	remap := make(map[int]int, len(c.materialize))
	for newIdx, oldIdx := range c.materialize {
		remap[oldIdx] = newIdx
	}
	c.joinIndices = make([]int, len(s.joinIndices))
	for i, idx := range s.joinIndices {
		if idx == rowKeyIndex {
			c.joinIndices[i] = rowKeyIndex
		} else {
			c.joinIndices[i] = remap[idx]
		}
	}
	c.includeIndices = make([]int, len(s.includeIndices))
	for i, idx := range s.includeIndices {
		c.includeIndices[i] = remap[idx]
	}
	return c
}

// CondenseRow projects a source row onto condensed settings. offset is stored
// when the settings carry a RowOffsetColumn.
func (s *TableSettings) CondenseRow(row relation.Row, offset int64) relation.Row {
	n := len(s.materialize)
	if s.offsetIndex >= 0 {
		n++
	}
	values := make([]relation.Value, n)
	for i, idx := range s.materialize {
		values[i] = row.Values[idx]
	}
	if s.offsetIndex >= 0 {
		values[s.offsetIndex] = offset
	}
	return relation.Row{Key: row.Key, Values: values}
}

// columnIndex returns the index of a named column, rowKeyIndex for the row
// key column, or -2 when absent.
func (s *TableSettings) columnIndex(name string) int {
	if name == RowKeyColumn {
		return rowKeyIndex
	}
	if idx := relation.ColumnIndex(s.columns, name); idx >= 0 {
		return idx
	}
	return -2
}
