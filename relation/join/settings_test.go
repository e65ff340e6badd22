package join

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-join/relation"
)

func TestTableSettings(t *testing.T) {
	table := relation.NewDataTable([]string{"A", "B", "C", "D"}, []relation.Row{
		relation.NewRow("k", int64(1), int64(2), int64(3), int64(4)),
	})

	s, err := NewTableSettings(Left, table, []string{"C", RowKeyColumn}, []string{"D", "A", "D"}, true)
	require.NoError(t, err)
	assert.Equal(t, Left, s.Side())
	assert.Equal(t, table, s.Table())
	assert.Equal(t, []string{"C", RowKeyColumn}, s.JoinColumns())
	assert.Equal(t, []string{"A", "D"}, s.IncludeColumns())
	assert.Equal(t, 2, s.NumJoinClauses())
	assert.True(t, s.RetainUnmatched())
	assert.False(t, s.WithRetainUnmatched(false).RetainUnmatched())
	assert.True(t, s.RetainUnmatched())

	row := table.Row(0)
	assert.Equal(t, []relation.Value{int64(3), "k"}, s.Get(row))
	assert.Equal(t, int64(-1), s.Offset(row))
	assert.Equal(t, []relation.Value{"k"}, s.UsingOnlyJoinClause(1).Get(row))

	t.Run("condensed", func(t *testing.T) {
		c := s.Condensed(true)
		assert.Equal(t, []string{"A", "C", "D", RowOffsetColumn}, c.Columns())
		assert.Equal(t, []string{"A", "D"}, c.IncludeColumns())

		condensed := c.CondenseRow(row, 7)
		assert.Equal(t, relation.RowKey("k"), condensed.Key)
		assert.Equal(t, []relation.Value{int64(1), int64(3), int64(4), int64(7)}, condensed.Values)
		assert.Equal(t, []relation.Value{int64(3), "k"}, c.Get(condensed))
		assert.Equal(t, int64(7), c.Offset(condensed))

		plain := s.Condensed(false)
		assert.Equal(t, []string{"A", "C", "D"}, plain.Columns())
		assert.Equal(t, int64(-1), plain.Offset(plain.CondenseRow(row, 7)))
	})
}

func TestTableSettingsErrors(t *testing.T) {
	table := relation.MustParseTable([]string{"A"}, "k,1")

	_, err := NewTableSettings(Left, nil, []string{"A"}, nil, false)
	assert.ErrorIs(t, err, ErrInvalidSettings)

	_, err = NewTableSettings(Left, table, []string{"B"}, nil, false)
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Contains(t, err.Error(), `join column "B"`)

	_, err = NewTableSettings(Right, table, []string{"A"}, []string{"Z"}, false)
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Contains(t, err.Error(), `include column "Z"`)
}

func TestModes(t *testing.T) {
	for _, m := range Modes {
		assert.Equal(t, m, ModeFor(m.RetainMatched(), m.RetainUnmatched(Left), m.RetainUnmatched(Right)))
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	m, err := ParseMode("FULL_OUTER")
	require.NoError(t, err)
	assert.Equal(t, FullOuter, m)

	_, err = ParseMode("sideways")
	assert.Error(t, err)

	for _, o := range orders {
		parsed, err := ParseOutputOrder(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, parsed)
	}
	_, err = ParseOutputOrder("random")
	assert.Error(t, err)

	assert.Equal(t, Right, Left.Other())
	assert.Equal(t, Left, Right.Other())
}

func TestRowKeyFactories(t *testing.T) {
	l := relation.NewRow("L")
	r := relation.NewRow("R")

	seq := SequenceRowKeys()
	assert.Equal(t, relation.RowKey("Row0"), seq(&l, &r))
	assert.Equal(t, relation.RowKey("Row1"), seq(nil, &r))

	concat := ConcatRowKeys("_")
	assert.Equal(t, relation.RowKey("L_R"), concat(&l, &r))
	assert.Equal(t, relation.RowKey("L_?"), concat(&l, nil))
	assert.Equal(t, relation.RowKey("?_R"), concat(nil, &r))

	keep := KeepRowKeys()
	assert.Equal(t, relation.RowKey("L"), keep(&l, &r))
	assert.Equal(t, relation.RowKey("R"), keep(nil, &r))
}

func TestKeepRowKeysApplicable(t *testing.T) {
	cols := []string{"A", "B"}
	build := func(leftJoin, rightJoin []string, conjunctive, matched, leftUnmatched, rightUnmatched bool) *Specification {
		left, err := NewSettingsForColumns(Left, cols, leftJoin, nil, leftUnmatched)
		require.NoError(t, err)
		right, err := NewSettingsForColumns(Right, cols, rightJoin, nil, rightUnmatched)
		require.NoError(t, err)
		spec, err := NewBuilder(left, right).Conjunctive(conjunctive).RetainMatched(matched).Build()
		require.NoError(t, err)
		return spec
	}
	rowKey := []string{RowKeyColumn}
	rowKeyAndA := []string{RowKeyColumn, "A"}

	tests := []struct {
		name  string
		spec  *Specification
		split bool
		ok    bool
	}{
		{"inner on row keys", build(rowKey, rowKey, true, true, false, false), false, true},
		{"inner on columns", build([]string{"A"}, []string{"A"}, true, true, false, false), false, false},
		{"inner on row key and column", build(rowKeyAndA, rowKeyAndA, true, true, false, false), false, true},
		{"disjunctive with two clauses", build(rowKeyAndA, rowKeyAndA, false, true, false, false), false, false},
		{"disjunctive with one clause", build(rowKey, rowKey, false, true, false, false), false, true},
		{"full outer on row keys", build(rowKey, rowKey, true, true, true, true), false, true},
		{"full outer on row key and column", build(rowKeyAndA, rowKeyAndA, true, true, true, true), false, false},
		{"full outer on row key and column split", build(rowKeyAndA, rowKeyAndA, true, true, true, true), true, true},
		{"full anti on columns", build([]string{"A"}, []string{"B"}, true, false, true, true), false, false},
		{"left anti on columns", build([]string{"A"}, []string{"B"}, true, false, true, false), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := KeepRowKeysApplicable(tt.spec, tt.split)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSettings)
			}
		})
	}
}
