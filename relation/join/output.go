package join

import (
	"github.com/wbrown/janus-join/relation"
)

// SplitOutput holds the three result classes of a join as separate tables.
// Tables of classes the specification does not retain are empty.
type SplitOutput struct {
	Matches        *relation.DataTable
	LeftUnmatched  *relation.DataTable
	RightUnmatched *relation.DataTable
}

// Unmatched returns the unmatched table of a side.
func (o *SplitOutput) Unmatched(side Side) *relation.DataTable {
	if side == Left {
		return o.LeftUnmatched
	}
	return o.RightUnmatched
}

// matchColumns returns the match table columns, with offset columns when
// row offsets are extracted.
func (r *joinRun) matchColumns() []string {
	cols := append([]string(nil), r.spec.MatchTableColumns()...)
	if r.opts.ExtractRowOffsets {
		cols = append(cols, LeftRowOffsetColumn, RightRowOffsetColumn)
	}
	return cols
}

func (r *joinRun) unmatchedColumns(side Side) []string {
	cols := append([]string(nil), r.spec.UnmatchedTableColumns(side)...)
	if r.opts.ExtractRowOffsets {
		cols = append(cols, offsetColumnName(side))
	}
	return cols
}

func offsetColumnName(side Side) string {
	if side == Left {
		return LeftRowOffsetColumn
	}
	return RightRowOffsetColumn
}

// withOffsets appends offset cells; absent sides have nil offsets.
func (r *joinRun) withOffsets(values []relation.Value, offsets ...relation.Value) []relation.Value {
	if !r.opts.ExtractRowOffsets {
		return values
	}
	return append(values, offsets...)
}

// combined materializes matches, then left unmatched rows, then right
// unmatched rows into one table. Row keys are created in output order.
func (r *joinRun) combined() *relation.DataTable {
	keys := r.spec.RowKeys()
	matches := r.container.Matches()
	leftUnmatched := r.container.Unmatched(Left)
	rightUnmatched := r.container.Unmatched(Right)

	out := relation.NewEmptyTable(r.matchColumns(), len(matches)+len(leftUnmatched)+len(rightUnmatched))
	for i := range matches {
		m := &matches[i]
		values := r.withOffsets(r.work.RowJoin(m.Left, m.Right), m.LeftOffset, m.RightOffset)
		out.Append(relation.Row{Key: keys(&m.Left, &m.Right), Values: values})
	}
	for i := range leftUnmatched {
		u := &leftUnmatched[i]
		values := r.withOffsets(r.work.LeftOuterRow(u.Row), u.Offset, nil)
		out.Append(relation.Row{Key: keys(&u.Row, nil), Values: values})
	}
	for i := range rightUnmatched {
		u := &rightUnmatched[i]
		values := r.withOffsets(r.work.RightOuterRow(u.Row), nil, u.Offset)
		out.Append(relation.Row{Key: keys(nil, &u.Row), Values: values})
	}
	r.jctx.OutputMaterialized("combined", out.Columns(), out.Size())
	return out
}

// split materializes each result class into its own table. Unmatched rows
// keep their input keys.
func (r *joinRun) split() *SplitOutput {
	keys := r.spec.RowKeys()
	matches := r.container.Matches()

	out := &SplitOutput{
		Matches:        relation.NewEmptyTable(r.matchColumns(), len(matches)),
		LeftUnmatched:  relation.NewEmptyTable(r.unmatchedColumns(Left), len(r.container.Unmatched(Left))),
		RightUnmatched: relation.NewEmptyTable(r.unmatchedColumns(Right), len(r.container.Unmatched(Right))),
	}
	for i := range matches {
		m := &matches[i]
		values := r.withOffsets(r.work.RowJoin(m.Left, m.Right), m.LeftOffset, m.RightOffset)
		out.Matches.Append(relation.Row{Key: keys(&m.Left, &m.Right), Values: values})
	}
	r.jctx.OutputMaterialized("matches", out.Matches.Columns(), out.Matches.Size())

	for _, side := range []Side{Left, Right} {
		table := out.Unmatched(side)
		unmatched := r.container.Unmatched(side)
		for i := range unmatched {
			u := &unmatched[i]
			values := r.withOffsets(r.work.ProjectOuter(side, u.Row), u.Offset)
			table.Append(relation.Row{Key: u.Row.Key, Values: values})
		}
		r.jctx.OutputMaterialized(side.String()+" unmatched", table.Columns(), table.Size())
	}
	return out
}
