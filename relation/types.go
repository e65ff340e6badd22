// Package relation provides the tabular data model consumed by the join
// engine: rows with keys, restartable tables, value comparison and the
// binary row encoding used for temporary storage.
package relation

import (
	"fmt"
	"time"
)

// Value is a single cell. nil is the missing value.
//
// Valid value types:
//   - string
//   - int, int32, int64
//   - float32, float64
//   - bool
//   - time.Time
//   - []byte
type Value interface{}

// RowKey identifies a row within its table.
type RowKey string

func (k RowKey) String() string { return string(k) }

// Row is a fixed-arity sequence of cells plus the row's key.
type Row struct {
	Key    RowKey
	Values []Value
}

// NewRow creates a row from a key and cells.
func NewRow(key string, values ...Value) Row {
	return Row{Key: RowKey(key), Values: values}
}

// IsMissing reports whether v is the missing value.
func IsMissing(v Value) bool {
	return v == nil
}

func (r Row) String() string {
	return fmt.Sprintf("%s%v", r.Key, r.Values)
}

// Table is a finite, restartable sequence of rows.
type Table interface {
	Columns() []string
	Size() int64
	// Iterator starts a new scan over the table.
	Iterator() RowIterator
}

// RowIterator scans a table once.
type RowIterator interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}

// ColumnIndex returns the position of name in columns, or -1.
func ColumnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

// String returns a display form for a value; missing values render as "?".
func String(v Value) string {
	switch val := v.(type) {
	case nil:
		return "?"
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", val)
	}
}
