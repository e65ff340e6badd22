package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/wbrown/janus-join/relation"
)

// LoadParquet reads a parquet file into memory. The cells of keyColumn
// become the row keys and the column is left out of the table; with an empty
// keyColumn rows are keyed Row0, Row1, ... in file order.
func LoadParquet(path, keyColumn string) (*relation.DataTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file stats: %w", err)
	}
	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file %s: %w", path, err)
	}

	var columns []string
	keyFound := keyColumn == ""
	for _, field := range pf.Schema().Fields() {
		if field.Name() == keyColumn {
			keyFound = true
			continue
		}
		columns = append(columns, field.Name())
	}
	if !keyFound {
		return nil, fmt.Errorf("key column %q is not in %s", keyColumn, path)
	}

	table := relation.NewEmptyTable(columns, int(pf.NumRows()))
	reader := parquet.NewReader(pf)
	defer reader.Close()

	for n := 0; ; n++ {
		record := make(map[string]interface{})
		if err := reader.Read(&record); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read row %d of %s: %w", n, path, err)
		}

		key := "Row" + strconv.Itoa(n)
		if keyColumn != "" {
			key = relation.String(parquetValue(record[keyColumn]))
		}
		values := make([]relation.Value, len(columns))
		for i, c := range columns {
			values[i] = parquetValue(record[c])
		}
		table.Append(relation.Row{Key: relation.RowKey(key), Values: values})
	}
	return table, nil
}

// parquetValue maps a decoded parquet cell onto a relation value.
func parquetValue(v interface{}) relation.Value {
	switch val := v.(type) {
	case nil, string, int32, int64, float32, float64, bool, []byte, time.Time:
		return val
	case int:
		return int64(val)
	case int8:
		return int32(val)
	case int16:
		return int32(val)
	case uint8:
		return int32(val)
	case uint16:
		return int32(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
