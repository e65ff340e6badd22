package join

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-join/relation"
)

func columnSettings(t *testing.T, side Side, columns, join, include []string) *TableSettings {
	t.Helper()
	s, err := NewSettingsForColumns(side, columns, join, include, false)
	require.NoError(t, err)
	return s
}

func TestMatchTableColumns(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		left := columnSettings(t, Left, []string{"A", "B", "C", "E"}, []string{"A"}, []string{"E", "C", "A"})
		right := columnSettings(t, Right, []string{"A", "D", "U", "V"}, []string{"D"}, []string{"V", "U", "A"})
		spec, err := NewBuilder(left, right).ColumnNameDisambiguator(SuffixDisambiguator(" (right table)")).Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"A", "C", "E", "A (right table)", "U", "V"}, spec.MatchTableColumns())
		assert.Equal(t, []string{"A", "C", "E"}, spec.UnmatchedTableColumns(Left))
		assert.Equal(t, []string{"A", "U", "V"}, spec.UnmatchedTableColumns(Right))
	})

	t.Run("merged", func(t *testing.T) {
		left := columnSettings(t, Left, []string{"A", "B", "C", "D", "E"}, []string{"C", "D"}, []string{"A", "C", "E"})
		right := columnSettings(t, Right, []string{"Z", "A", "U", "V"}, []string{"Z", "A"}, []string{"A", "U", "V"})
		spec, err := NewBuilder(left, right).MergeJoinColumns(true).Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"A", "C=Z", "D=A", "E", "U", "V"}, spec.MatchTableColumns())
		// unmatched tables keep the unmerged names
		assert.Equal(t, []string{"A", "U", "V"}, spec.UnmatchedTableColumns(Right))
	})

	t.Run("merged without included partner", func(t *testing.T) {
		left := columnSettings(t, Left, []string{"A", "B", "C", "D", "E"}, []string{"C", "D"}, []string{"A", "C", "E"})
		right := columnSettings(t, Right, []string{"Z", "A", "U", "V"}, []string{"Z", "A"}, []string{"U", "V"})
		spec, err := NewBuilder(left, right).MergeJoinColumns(true).Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"A", "C=Z", "E", "U", "V"}, spec.MatchTableColumns())
	})

	t.Run("merged with row key clause", func(t *testing.T) {
		left := columnSettings(t, Left, []string{"A", "C"}, []string{RowKeyColumn, "C"}, []string{"A", "C"})
		right := columnSettings(t, Right, []string{"Z", "U"}, []string{RowKeyColumn, "Z"}, []string{"Z", "U"})
		spec, err := NewBuilder(left, right).MergeJoinColumns(true).Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"A", "C=Z", "U"}, spec.MatchTableColumns())
	})

	t.Run("merged keeps right columns joined to the row key", func(t *testing.T) {
		left := columnSettings(t, Left, []string{"A"}, []string{RowKeyColumn}, []string{"A"})
		right := columnSettings(t, Right, []string{"X", "U"}, []string{"X"}, []string{"X", "U"})
		spec, err := NewBuilder(left, right).MergeJoinColumns(true).Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"A", "X", "U"}, spec.MatchTableColumns())
		l := relation.NewRow("k", "a")
		r := relation.NewRow("r", "k", "u")
		assert.Equal(t, []relation.Value{"a", "k", "u"}, spec.RowJoin(l, r))
		assert.Equal(t, []relation.Value{nil, "k", "u"}, spec.RightOuterRow(r))
	})

	t.Run("merged absorbs right columns with a value partner", func(t *testing.T) {
		left := columnSettings(t, Left, []string{"A"}, []string{RowKeyColumn, "A"}, []string{"A"})
		right := columnSettings(t, Right, []string{"X", "U"}, []string{"X", "X"}, []string{"X", "U"})
		spec, err := NewBuilder(left, right).MergeJoinColumns(true).Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"A=X", "U"}, spec.MatchTableColumns())
	})

	t.Run("merged with equal names", func(t *testing.T) {
		left := columnSettings(t, Left, []string{"K", "L"}, []string{"K"}, []string{"K", "L"})
		right := columnSettings(t, Right, []string{"K", "M"}, []string{"K"}, []string{"K", "M"})
		spec, err := NewBuilder(left, right).MergeJoinColumns(true).Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"K", "L", "M"}, spec.MatchTableColumns())
	})

	t.Run("merged name is disambiguated", func(t *testing.T) {
		left := columnSettings(t, Left, []string{"A", "C"}, []string{"A"}, []string{"A", "C"})
		right := columnSettings(t, Right, []string{"B", "A=B"}, []string{"B"}, []string{"B", "A=B"})
		spec, err := NewBuilder(left, right).MergeJoinColumns(true).Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"A=B", "C", "A=B (#1)"}, spec.MatchTableColumns())
	})
}

func TestColumnNameDisambiguation(t *testing.T) {
	cols := []string{"A", "B", "C"}

	tests := []struct {
		name          string
		disambiguator func(string) string
		expected      []string
	}{
		{"default", DefaultDisambiguator, []string{"A", "B", "C", "A (#1)", "B (#1)", "C (#1)"}},
		{"suffix", SuffixDisambiguator("_r"), []string{"A", "B", "C", "A_r", "B_r", "C_r"}},
		{"identity", func(s string) string { return s }, []string{"A", "B", "C", "A (#1)", "B (#1)", "C (#1)"}},
		{"blank", func(string) string { return "  " }, []string{"A", "B", "C", "A (#1)", "B (#1)", "C (#1)"}},
		{"nil", nil, []string{"A", "B", "C", "A (#1)", "B (#1)", "C (#1)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := columnSettings(t, Left, cols, []string{"A"}, cols)
			right := columnSettings(t, Right, cols, []string{"A"}, cols)
			spec, err := NewBuilder(left, right).ColumnNameDisambiguator(tt.disambiguator).Build()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, spec.MatchTableColumns())
		})
	}

	t.Run("repeated application", func(t *testing.T) {
		left := columnSettings(t, Left, []string{"A", "A*"}, []string{"A"}, []string{"A", "A*"})
		right := columnSettings(t, Right, []string{"A"}, []string{"A"}, []string{"A"})
		spec, err := NewBuilder(left, right).ColumnNameDisambiguator(SuffixDisambiguator("*")).Build()
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "A*", "A**"}, spec.MatchTableColumns())
	})

	t.Run("cycling disambiguator", func(t *testing.T) {
		flip := func(s string) string {
			if s == "A" {
				return "B"
			}
			return "A"
		}
		left := columnSettings(t, Left, []string{"A", "B"}, []string{"A"}, []string{"A", "B"})
		right := columnSettings(t, Right, []string{"A"}, []string{"A"}, []string{"A"})
		spec, err := NewBuilder(left, right).ColumnNameDisambiguator(flip).Build()
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "A (#1)"}, spec.MatchTableColumns())
	})
}

func TestColumnJoinPartners(t *testing.T) {
	left := columnSettings(t, Left, []string{"A", "B"}, []string{"A", "B", "A", RowKeyColumn}, nil)
	right := columnSettings(t, Right, []string{"A", "D"}, []string{"A", "D", "D", "A"}, nil)
	spec, err := NewBuilder(left, right).Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "D"}, spec.ColumnJoinPartners(Left, "A"))
	assert.Equal(t, []string{"B", "A"}, spec.ColumnJoinPartners(Right, "D"))
	// the row key clause is not a column partnership
	assert.Equal(t, []string{"A"}, spec.ColumnJoinPartners(Right, "A"))
	assert.Empty(t, spec.ColumnJoinPartners(Left, RowKeyColumn))
	assert.Empty(t, spec.ColumnJoinPartners(Left, "C"))
}

func TestBuildErrors(t *testing.T) {
	cols := []string{"A", "B"}
	left := columnSettings(t, Left, cols, []string{"A"}, nil)
	right := columnSettings(t, Right, cols, []string{"A"}, nil)
	twoClauses := columnSettings(t, Right, cols, []string{"A", "B"}, nil)
	noClauses := columnSettings(t, Left, cols, nil, nil)
	noRightClauses := columnSettings(t, Right, cols, nil, nil)

	tests := []struct {
		name    string
		builder *Builder
	}{
		{"missing left", NewBuilder(nil, right)},
		{"missing right", NewBuilder(left, nil)},
		{"swapped sides", NewBuilder(right, left)},
		{"no clauses", NewBuilder(noClauses, noRightClauses)},
		{"unequal clauses", NewBuilder(left, twoClauses)},
		{"missing row keys", NewBuilder(left, right).RowKeyFactory(nil, false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			assert.ErrorIs(t, err, ErrInvalidSettings)
		})
	}
}

func TestSpecificationAccessors(t *testing.T) {
	cols := []string{"A", "B", "C"}
	left, err := NewSettingsForColumns(Left, cols, []string{"A", "B", "C"}, []string{"A"}, true)
	require.NoError(t, err)
	right, err := NewSettingsForColumns(Right, cols, []string{"C", "B", "A"}, []string{"B"}, false)
	require.NoError(t, err)

	spec, err := NewBuilder(left, right).Build()
	require.NoError(t, err)
	assert.True(t, spec.Conjunctive())
	assert.Equal(t, 1, spec.NumConjunctiveGroups())
	assert.Equal(t, 3, spec.NumJoinClauses())
	assert.Equal(t, LeftOuter, spec.Mode())
	assert.Equal(t, Arbitrary, spec.OutputRowOrder())
	assert.Equal(t, relation.Strict, spec.ComparisonMode())
	assert.True(t, spec.RowKeyFactoryCreatesUniqueKeys())

	spec, err = NewBuilder(left, right).
		Conjunctive(false).
		RetainMatched(false).
		ComparisonMode(relation.AsString).
		Build()
	require.NoError(t, err)
	assert.Equal(t, 3, spec.NumConjunctiveGroups())
	assert.Equal(t, LeftAnti, spec.Mode())
	assert.Equal(t, relation.AsString, spec.ComparisonMode())

	single := spec.UsingOnlyJoinClause(1)
	assert.True(t, single.Conjunctive())
	assert.Equal(t, 1, single.NumJoinClauses())
	assert.Equal(t, []string{"B"}, single.Settings(Right).JoinColumns())
	assert.Equal(t, spec.MatchTableColumns(), single.MatchTableColumns())
	// the receiver is unchanged
	assert.Equal(t, 3, spec.NumJoinClauses())
}

func TestRowProjection(t *testing.T) {
	left := columnSettings(t, Left, []string{"K", "L"}, []string{"K", "K"}, []string{"L", "K"})
	right := columnSettings(t, Right, []string{"J1", "J2", "M"}, []string{"J1", "J2"}, []string{"M"})

	build := func(conjunctive bool) *Specification {
		spec, err := NewBuilder(left, right).MergeJoinColumns(true).Conjunctive(conjunctive).Build()
		require.NoError(t, err)
		return spec
	}

	spec := build(false)
	require.Equal(t, []string{"K=J1=J2", "L", "M"}, spec.MatchTableColumns())

	agree := relation.NewRow("r1", "a", "a", "m")
	disagree := relation.NewRow("r2", "a", "b", "n")
	l := relation.NewRow("l", "a", "x")

	assert.Equal(t, []relation.Value{"a", "x", "m"}, spec.RowJoin(l, agree))
	assert.Equal(t, []relation.Value{nil, "x", "n"}, spec.RowJoin(l, disagree))
	assert.Equal(t, []relation.Value{"a", "x", "n"}, build(true).RowJoin(l, disagree))

	assert.Equal(t, []relation.Value{"a", "x", nil}, spec.LeftOuterRow(l))
	assert.Equal(t, []relation.Value{"a", nil, "m"}, spec.RightOuterRow(agree))
	assert.Equal(t, []relation.Value{nil, nil, "n"}, spec.RightOuterRow(disagree))

	assert.Equal(t, []relation.Value{"a", "x"}, spec.ProjectOuter(Left, l))
	assert.Equal(t, []relation.Value{"m"}, spec.ProjectOuter(Right, agree))

	// merged cells agree under the comparison mode
	asString, err := NewBuilder(left, right).MergeJoinColumns(true).Conjunctive(false).
		ComparisonMode(relation.AsString).Build()
	require.NoError(t, err)
	mixed := relation.NewRow("r3", int64(1), "1", "o")
	assert.Equal(t, []relation.Value{"1", "x", "o"}, asString.RowJoin(relation.NewRow("l", "1", "x"), mixed))
	assert.Equal(t, []relation.Value{int64(1), nil, "o"}, asString.RightOuterRow(mixed))
	assert.Equal(t, []relation.Value{nil, nil, "o"}, spec.RightOuterRow(mixed))
}
