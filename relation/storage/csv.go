package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/wbrown/janus-join/relation"
)

// LoadCSV reads a CSV table with a header line. Cells are strings; empty
// cells are missing. The cells of keyColumn become the row keys and the
// column is left out of the table; with an empty keyColumn rows are keyed
// Row0, Row1, ... in file order.
func LoadCSV(r io.Reader, keyColumn string) (*relation.DataTable, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	keyIndex := -1
	var columns []string
	for i, name := range header {
		if keyColumn != "" && name == keyColumn && keyIndex < 0 {
			keyIndex = i
			continue
		}
		columns = append(columns, name)
	}
	if keyColumn != "" && keyIndex < 0 {
		return nil, fmt.Errorf("key column %q is not in the CSV header %v", keyColumn, header)
	}

	table := relation.NewEmptyTable(columns, 0)
	for n := 0; ; n++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		key := "Row" + strconv.Itoa(n)
		values := make([]relation.Value, 0, len(columns))
		for i, cell := range record {
			if i == keyIndex {
				key = cell
				continue
			}
			if cell == "" {
				values = append(values, nil)
			} else {
				values = append(values, cell)
			}
		}
		table.Append(relation.Row{Key: relation.RowKey(key), Values: values})
	}
	return table, nil
}

// WriteCSV writes a table with a header line whose first column, named
// keyColumn, holds the row keys. Missing cells are written empty.
func WriteCSV(w io.Writer, t relation.Table, keyColumn string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{keyColumn}, t.Columns()...)); err != nil {
		return err
	}

	it := t.Iterator()
	defer it.Close()
	record := make([]string, len(t.Columns())+1)
	for it.Next() {
		row := it.Row()
		record[0] = string(row.Key)
		for i, v := range row.Values {
			if relation.IsMissing(v) {
				record[i+1] = ""
			} else {
				record[i+1] = relation.String(v)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
