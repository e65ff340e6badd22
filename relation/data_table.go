package relation

import (
	"fmt"
	"strings"
)

// DataTable is an in-memory Table. It is also the sink type join outputs are
// materialized into.
type DataTable struct {
	columns []string
	rows    []Row
}

// NewDataTable creates a table over the given rows. Rows are not copied.
func NewDataTable(columns []string, rows []Row) *DataTable {
	return &DataTable{columns: columns, rows: rows}
}

// NewEmptyTable creates a table with the given columns and no rows, sized for
// capacity appends.
func NewEmptyTable(columns []string, capacity int) *DataTable {
	return &DataTable{columns: columns, rows: make([]Row, 0, capacity)}
}

// ParseTable builds a table from compact row strings of the form
// "key,v1,v2,...". Cells equal to "?" are missing.
func ParseTable(columns []string, rows ...string) (*DataTable, error) {
	t := NewEmptyTable(columns, len(rows))
	for _, s := range rows {
		cells := strings.Split(s, ",")
		if len(cells) != len(columns)+1 {
			return nil, fmt.Errorf("row %q has %d cells, want %d", s, len(cells)-1, len(columns))
		}
		values := make([]Value, len(columns))
		for i, c := range cells[1:] {
			if c != "?" {
				values[i] = c
			}
		}
		t.Append(Row{Key: RowKey(cells[0]), Values: values})
	}
	return t, nil
}

// MustParseTable is ParseTable that panics on malformed input.
func MustParseTable(columns []string, rows ...string) *DataTable {
	t, err := ParseTable(columns, rows...)
	if err != nil {
		panic(err)
	}
	return t
}

// Append adds a row to the table.
func (t *DataTable) Append(row Row) {
	t.rows = append(t.rows, row)
}

func (t *DataTable) Columns() []string { return t.columns }

func (t *DataTable) Size() int64 { return int64(len(t.rows)) }

// Rows returns the underlying rows.
func (t *DataTable) Rows() []Row { return t.rows }

// Row returns the i-th row.
func (t *DataTable) Row(i int) Row { return t.rows[i] }

// Strings renders every row as "key,v1,v2,...", the inverse of ParseTable.
func (t *DataTable) Strings() []string {
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		s := string(r.Key)
		for _, v := range r.Values {
			s += "," + String(v)
		}
		out[i] = s
	}
	return out
}

func (t *DataTable) Iterator() RowIterator {
	return &sliceIterator{rows: t.rows, pos: -1}
}

type sliceIterator struct {
	rows []Row
	pos  int
}

func (it *sliceIterator) Next() bool {
	if it.pos+1 >= len(it.rows) {
		it.pos = len(it.rows)
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Row() Row { return it.rows[it.pos] }

func (it *sliceIterator) Err() error { return nil }

func (it *sliceIterator) Close() error { return nil }

// Collect reads every row of a table into memory.
func Collect(t Table) (*DataTable, error) {
	if dt, ok := t.(*DataTable); ok {
		return dt, nil
	}
	out := NewEmptyTable(t.Columns(), int(t.Size()))
	it := t.Iterator()
	defer it.Close()
	for it.Next() {
		out.Append(it.Row())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
