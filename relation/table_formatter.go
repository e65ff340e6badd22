package relation

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// TableFormatter renders tables as markdown
type TableFormatter struct {
	// MaxWidth is the maximum width for a cell
	MaxWidth int
	// TruncateString is the string to append when truncating
	TruncateString string
	// MaxRows limits the number of rendered rows; 0 renders all
	MaxRows int
	// ShowRowKeys adds a leading row key column
	ShowRowKeys bool
}

// NewTableFormatter creates a new table formatter with default settings
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		MaxWidth:       50,
		TruncateString: "...",
		ShowRowKeys:    true,
	}
}

// FormatTable formats a table as markdown
func (tf *TableFormatter) FormatTable(t Table) (string, error) {
	if t == nil || t.Size() == 0 {
		var columns []string
		if t != nil {
			columns = t.Columns()
		}
		return fmt.Sprintf("_Columns: %v_\n\n_No rows_", columns), nil
	}

	tableString := &strings.Builder{}
	columns := t.Columns()
	if tf.ShowRowKeys {
		columns = append([]string{"RowID"}, columns...)
	}

	alignment := make([]tw.Align, len(columns))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(columns)

	it := t.Iterator()
	defer it.Close()

	rendered := 0
	for it.Next() {
		if tf.MaxRows > 0 && rendered >= tf.MaxRows {
			break
		}
		row := it.Row()
		cells := make([]string, 0, len(columns))
		if tf.ShowRowKeys {
			cells = append(cells, tf.truncate(string(row.Key)))
		}
		for _, val := range row.Values {
			cells = append(cells, tf.formatValue(val))
		}
		table.Append(cells)
		rendered++
	}
	if err := it.Err(); err != nil {
		return "", err
	}

	table.Render()

	if rendered < int(t.Size()) {
		tableString.WriteString(fmt.Sprintf("\n_%d of %d rows_\n", rendered, t.Size()))
	} else {
		tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", t.Size()))
	}

	return tableString.String(), nil
}

// formatValue converts a value to a string representation
func (tf *TableFormatter) formatValue(val Value) string {
	switch v := val.(type) {
	case nil:
		return "?"
	case float64:
		return fmt.Sprintf("%.2f", v)
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	default:
		return tf.truncate(String(v))
	}
}

func (tf *TableFormatter) truncate(s string) string {
	if tf.MaxWidth <= 0 || len(s) <= tf.MaxWidth {
		return s
	}
	cut := tf.MaxWidth - len(tf.TruncateString)
	if cut < 0 {
		cut = 0
	}
	return s[:cut] + tf.TruncateString
}

// TableString returns a markdown rendering of a table, or the error text.
func TableString(t Table) string {
	s, err := NewTableFormatter().FormatTable(t)
	if err != nil {
		return fmt.Sprintf("_error: %v_", err)
	}
	return s
}
