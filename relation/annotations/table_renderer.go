package annotations

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// TableRenderer pretty-prints table shapes in event output
type TableRenderer struct {
	useColor bool
}

// NewTableRenderer creates a new table renderer
func NewTableRenderer(useColor bool) *TableRenderer {
	return &TableRenderer{useColor: useColor}
}

// RenderTable renders column names and a row count; a negative count omits it.
func (r *TableRenderer) RenderTable(columns []string, rowCount int64) string {
	colList := strings.Join(columns, " ")

	if r.useColor {
		result := fmt.Sprintf("%s%s%s",
			color.BlueString("Table(["),
			color.CyanString(colList),
			color.BlueString("]"))

		if rowCount >= 0 {
			result += fmt.Sprintf("%s%s%s",
				color.BlueString(", "),
				r.colorizeCount("Rows", rowCount),
				color.BlueString(")"))
		} else {
			result += color.BlueString(")")
		}
		return result
	}

	if rowCount >= 0 {
		return fmt.Sprintf("Table([%s], %d Rows)", colList, rowCount)
	}
	return fmt.Sprintf("Table([%s])", colList)
}

// RenderJoin renders a join of two tables into a result
func (r *TableRenderer) RenderJoin(mode string, leftCols []string, leftCount int64, rightCols []string, rightCount int64, resultCols []string, resultCount int64) string {
	left := r.RenderTable(leftCols, leftCount)
	right := r.RenderTable(rightCols, rightCount)
	result := r.RenderTable(resultCols, resultCount)

	joinOp := fmt.Sprintf(" %s ", mode)
	if r.useColor {
		joinOp = color.YellowString(joinOp)
	}

	return fmt.Sprintf("%s%s%s → %s", left, joinOp, right, result)
}

// colorizeCount formats a count with color based on size
func (r *TableRenderer) colorizeCount(label string, count int64) string {
	if !r.useColor {
		return fmt.Sprintf("%d %s", count, label)
	}

	countStr := fmt.Sprintf("%d", count)

	switch {
	case count == 0:
		countStr = color.RedString(countStr)
	case count < 100:
		countStr = color.GreenString(countStr)
	case count < 10000:
		countStr = color.YellowString(countStr)
	default:
		countStr = color.RedString(countStr)
	}

	return fmt.Sprintf("%s %s", countStr, label)
}
