package join

import (
	"strings"

	"github.com/wbrown/janus-join/relation"
)

// Specification describes a join: the settings of both inputs, how their
// rows are compared, and the shape and order of the output. It is immutable
// once built.
type Specification struct {
	settings         sides[*TableSettings]
	conjunctive      bool
	mergeColumns     bool
	disambiguator    func(string) string
	order            OutputOrder
	rowKeys          RowKeyFactory
	uniqueRowKeys    bool
	retainMatched    bool
	comparisonMode   relation.ComparisonMode
	matchColumns     []outputColumn
	unmatchedColumns sides[[]outputColumn]
}

// outputColumn is one column of an output table and where its cells come
// from. partners lists right-side source columns merged into a left column.
type outputColumn struct {
	name     string
	side     Side
	index    int
	partners []int
}

// Builder collects the options of a Specification.
type Builder struct {
	spec Specification
}

// NewBuilder starts a specification over left and right settings. Defaults:
// conjunctive, no column merging, DefaultDisambiguator, Arbitrary order,
// sequence row keys, matches retained, strict comparison.
func NewBuilder(left, right *TableSettings) *Builder {
	return &Builder{spec: Specification{
		settings:      sides[*TableSettings]{left, right},
		conjunctive:   true,
		disambiguator: DefaultDisambiguator,
		order:         Arbitrary,
		rowKeys:       SequenceRowKeys(),
		uniqueRowKeys: true,
		retainMatched: true,
	}}
}

// Conjunctive selects whether all clauses must hold (true) or any (false).
func (b *Builder) Conjunctive(conjunctive bool) *Builder {
	b.spec.conjunctive = conjunctive
	return b
}

// MergeJoinColumns outputs each left join column once, absorbing its right
// partners, instead of outputting both sides' columns.
func (b *Builder) MergeJoinColumns(merge bool) *Builder {
	b.spec.mergeColumns = merge
	return b
}

// ColumnNameDisambiguator sets the function applied to clashing output
// column names.
func (b *Builder) ColumnNameDisambiguator(f func(string) string) *Builder {
	b.spec.disambiguator = f
	return b
}

// OutputRowOrder sets the order of output rows.
func (b *Builder) OutputRowOrder(order OutputOrder) *Builder {
	b.spec.order = order
	return b
}

// RowKeyFactory sets how output row keys are created. createsUniqueKeys
// declares that the factory never repeats a key within one output.
func (b *Builder) RowKeyFactory(f RowKeyFactory, createsUniqueKeys bool) *Builder {
	b.spec.rowKeys = f
	b.spec.uniqueRowKeys = createsUniqueKeys
	return b
}

// RetainMatched selects whether matched rows are output.
func (b *Builder) RetainMatched(retain bool) *Builder {
	b.spec.retainMatched = retain
	return b
}

// ComparisonMode sets how join values are compared.
func (b *Builder) ComparisonMode(mode relation.ComparisonMode) *Builder {
	b.spec.comparisonMode = mode
	return b
}

// Build validates the options and derives the output columns.
func (b *Builder) Build() (*Specification, error) {
	s := b.spec
	left, right := s.settings[Left], s.settings[Right]
	switch {
	case left == nil || right == nil:
		return nil, invalidf("both table settings are required")
	case left.Side() != Left:
		return nil, invalidf("left settings were created for the %s side", left.Side())
	case right.Side() != Right:
		return nil, invalidf("right settings were created for the %s side", right.Side())
	case left.NumJoinClauses() == 0:
		return nil, invalidf("at least one join clause is required")
	case left.NumJoinClauses() != right.NumJoinClauses():
		return nil, invalidf("left table has %d join columns, right table has %d",
			left.NumJoinClauses(), right.NumJoinClauses())
	case s.rowKeys == nil:
		return nil, invalidf("row key factory is missing")
	}
	if s.disambiguator == nil {
		s.disambiguator = DefaultDisambiguator
	}
	s.derive()
	return &s, nil
}

// With returns a copy of the specification over other settings with the
// same join and include columns, e.g. condensed working tables.
func (s *Specification) With(left, right *TableSettings) *Specification {
	c := *s
	c.settings = sides[*TableSettings]{left, right}
	c.derive()
	return &c
}

// UsingOnlyJoinClause returns a conjunctive copy that joins on the i-th
// clause alone.
func (s *Specification) UsingOnlyJoinClause(i int) *Specification {
	c := s.With(s.settings[Left].UsingOnlyJoinClause(i), s.settings[Right].UsingOnlyJoinClause(i))
	c.conjunctive = true
	// output columns stay those of the full specification
	c.matchColumns = s.matchColumns
	c.unmatchedColumns = s.unmatchedColumns
	return c
}

func (s *Specification) derive() {
	if s.mergeColumns {
		s.matchColumns = s.mergedMatchColumns()
	} else {
		s.matchColumns = s.plainMatchColumns()
	}
	for _, side := range []Side{Left, Right} {
		set := s.settings[side]
		cols := make([]outputColumn, len(set.includeIndices))
		for i, idx := range set.includeIndices {
			cols[i] = outputColumn{name: set.includeColumns[i], side: side, index: idx}
		}
		s.unmatchedColumns[side] = cols
	}
}

// plainMatchColumns lists left includes followed by right includes.
func (s *Specification) plainMatchColumns() []outputColumn {
	taken := nameSet{}
	left, right := s.settings[Left], s.settings[Right]
	var cols []outputColumn
	for i, idx := range left.includeIndices {
		cols = append(cols, outputColumn{name: taken.claim(left.includeColumns[i], s.disambiguator), side: Left, index: idx})
	}
	for i, idx := range right.includeIndices {
		cols = append(cols, outputColumn{name: taken.claim(right.includeColumns[i], s.disambiguator), side: Right, index: idx})
	}
	return cols
}

// mergedMatchColumns walks the left table. A left join column is output when
// it is included or one of its right partners is; it absorbs those partners.
// Right includes not absorbed by a left column follow; a right column joined
// only to the left row key is not absorbed.
func (s *Specification) mergedMatchColumns() []outputColumn {
	taken := nameSet{}
	left, right := s.settings[Left], s.settings[Right]

	leftJoin := indexSet(left.joinIndices)
	leftIncluded := indexSet(left.includeIndices)
	rightAbsorbed := map[int]bool{}
	for i, idx := range right.joinIndices {
		if left.joinColumns[i] != RowKeyColumn {
			rightAbsorbed[idx] = true
		}
	}
	rightIncluded := indexSet(right.includeIndices)

	var cols []outputColumn
	for idx, name := range left.columns {
		if !leftJoin[idx] {
			if leftIncluded[idx] {
				cols = append(cols, outputColumn{name: taken.claim(name, s.disambiguator), side: Left, index: idx})
			}
			continue
		}

		partners := s.ColumnJoinPartners(Left, name)
		viaMerge := false
		sameName := false
		for _, p := range partners {
			viaMerge = viaMerge || rightIncluded[right.columnIndex(p)]
			sameName = sameName || p == name
		}
		if !leftIncluded[idx] && !viaMerge {
			continue
		}

		outName := name
		if !sameName && len(partners) > 0 {
			outName = name + "=" + strings.Join(partners, "=")
		}
		col := outputColumn{name: taken.claim(outName, s.disambiguator), side: Left, index: idx}
		for _, p := range partners {
			col.partners = append(col.partners, right.columnIndex(p))
		}
		cols = append(cols, col)
	}

	for i, idx := range right.includeIndices {
		if rightAbsorbed[idx] {
			continue
		}
		cols = append(cols, outputColumn{name: taken.claim(right.includeColumns[i], s.disambiguator), side: Right, index: idx})
	}
	return cols
}

func indexSet(indices []int) map[int]bool {
	set := make(map[int]bool, len(indices))
	for _, idx := range indices {
		set[idx] = true
	}
	return set
}

// ColumnJoinPartners returns the columns of the other side that name is
// compared to, in clause order. Row key references are skipped; a column
// joined several times is listed each time.
func (s *Specification) ColumnJoinPartners(side Side, name string) []string {
	this, other := s.settings[side], s.settings[side.Other()]
	var partners []string
	for i, c := range this.joinColumns {
		if c != name || c == RowKeyColumn {
			continue
		}
		if p := other.joinColumns[i]; p != RowKeyColumn {
			partners = append(partners, p)
		}
	}
	return partners
}

// Settings returns the settings of one side.
func (s *Specification) Settings(side Side) *TableSettings { return s.settings[side] }

// Conjunctive reports whether all clauses must hold.
func (s *Specification) Conjunctive() bool { return s.conjunctive }

// MergeJoinColumns reports whether join columns are merged in match output.
func (s *Specification) MergeJoinColumns() bool { return s.mergeColumns }

// OutputRowOrder returns the output row order.
func (s *Specification) OutputRowOrder() OutputOrder { return s.order }

// RowKeys returns the row key factory.
func (s *Specification) RowKeys() RowKeyFactory { return s.rowKeys }

// RowKeyFactoryCreatesUniqueKeys reports whether the factory was declared to
// produce unique keys.
func (s *Specification) RowKeyFactoryCreatesUniqueKeys() bool { return s.uniqueRowKeys }

// ComparisonMode returns how join values are compared.
func (s *Specification) ComparisonMode() relation.ComparisonMode { return s.comparisonMode }

// RetainMatched reports whether matched rows are output.
func (s *Specification) RetainMatched() bool { return s.retainMatched }

// RetainUnmatched reports whether unmatched rows of a side are output.
func (s *Specification) RetainUnmatched(side Side) bool {
	return s.settings[side].RetainUnmatched()
}

// Mode returns the join mode implied by the retain flags.
func (s *Specification) Mode() Mode {
	return ModeFor(s.retainMatched, s.RetainUnmatched(Left), s.RetainUnmatched(Right))
}

// NumJoinClauses returns the number of join clauses.
func (s *Specification) NumJoinClauses() int { return s.settings[Left].NumJoinClauses() }

// NumConjunctiveGroups returns how many single-pass joins the specification
// needs: one when conjunctive, one per clause otherwise.
func (s *Specification) NumConjunctiveGroups() int {
	if s.conjunctive {
		return 1
	}
	return s.NumJoinClauses()
}

// MatchTableColumns returns the column names of the match output.
func (s *Specification) MatchTableColumns() []string {
	return columnNames(s.matchColumns)
}

// UnmatchedTableColumns returns the column names of a side's unmatched
// output: its included columns, unmodified.
func (s *Specification) UnmatchedTableColumns(side Side) []string {
	return columnNames(s.unmatchedColumns[side])
}

func columnNames(cols []outputColumn) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// ProjectOuter returns a row's included cells in column order.
func (s *Specification) ProjectOuter(side Side, row relation.Row) []relation.Value {
	cols := s.unmatchedColumns[side]
	values := make([]relation.Value, len(cols))
	for i, c := range cols {
		values[i] = row.Values[c.index]
	}
	return values
}

// RowJoin returns the match output cells for a left and right row. Merged
// columns take the left value; in disjunctive joins they hold the value only
// when all merged cells agree.
func (s *Specification) RowJoin(left, right relation.Row) []relation.Value {
	values := make([]relation.Value, len(s.matchColumns))
	for i, c := range s.matchColumns {
		if c.side == Right {
			values[i] = right.Values[c.index]
			continue
		}
		v := left.Values[c.index]
		if !s.conjunctive && len(c.partners) > 0 {
			v = consensus(s.comparisonMode, v, right, c.partners)
		}
		values[i] = v
	}
	return values
}

// LeftOuterRow returns the match output cells for an unmatched left row; the
// right columns are missing.
func (s *Specification) LeftOuterRow(left relation.Row) []relation.Value {
	values := make([]relation.Value, len(s.matchColumns))
	for i, c := range s.matchColumns {
		if c.side == Left {
			values[i] = left.Values[c.index]
		}
	}
	return values
}

// RightOuterRow returns the match output cells for an unmatched right row.
// A merged left column holds the common value of its right partners, or is
// missing when they disagree.
func (s *Specification) RightOuterRow(right relation.Row) []relation.Value {
	values := make([]relation.Value, len(s.matchColumns))
	for i, c := range s.matchColumns {
		switch {
		case c.side == Right:
			values[i] = right.Values[c.index]
		case len(c.partners) > 0:
			first := cellAt(right, c.partners[0])
			values[i] = consensus(s.comparisonMode, first, right, c.partners[1:])
		}
	}
	return values
}

// consensus returns v when every listed cell of row equals it under mode,
// else missing.
func consensus(mode relation.ComparisonMode, v relation.Value, row relation.Row, indices []int) relation.Value {
	for _, idx := range indices {
		if !mode.Equal(v, cellAt(row, idx)) {
			return nil
		}
	}
	return v
}

func cellAt(row relation.Row, idx int) relation.Value {
	if idx < 0 || idx >= len(row.Values) {
		return nil
	}
	return row.Values[idx]
}
