package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-join/relation"
	"github.com/wbrown/janus-join/relation/join"
)

func newStore(t *testing.T) *TableStore {
	store, err := NewTableStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTableStore(t *testing.T) {
	store := newStore(t)
	ts := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	table := relation.NewDataTable([]string{"name", "age", "seen"}, []relation.Row{
		relation.NewRow("p1", "alice", int64(30), ts),
		relation.NewRow("p2", "bob", nil, ts.Add(time.Hour)),
		relation.NewRow("p3", "carol", int64(41), nil),
	})

	require.NoError(t, store.PutTable("people", table))
	stored, err := store.Table("people")
	require.NoError(t, err)
	assert.Equal(t, "people", stored.Name())
	assert.Equal(t, []string{"name", "age", "seen"}, stored.Columns())
	assert.Equal(t, int64(3), stored.Size())

	// read twice; iterators are independent
	for i := 0; i < 2; i++ {
		collected, err := relation.Collect(stored)
		require.NoError(t, err)
		assert.Equal(t, table.Strings(), collected.Strings())
	}

	names, err := store.Tables()
	require.NoError(t, err)
	assert.Equal(t, []string{"people"}, names)
}

func TestTableStoreReplaceAndDrop(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.PutTable("t", relation.MustParseTable([]string{"a"}, "r1,x", "r2,y", "r3,z")))
	require.NoError(t, store.PutTable("t", relation.MustParseTable([]string{"b", "c"}, "q1,1,2")))
	require.NoError(t, store.PutTable("u", relation.MustParseTable([]string{"a"})))

	stored, err := store.Table("t")
	require.NoError(t, err)
	collected, err := relation.Collect(stored)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, collected.Columns())
	assert.Equal(t, []string{"q1,1,2"}, collected.Strings())

	empty, err := store.Table("u")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Size())
	it := empty.Iterator()
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
	assert.NoError(t, it.Close())

	names, err := store.Tables()
	require.NoError(t, err)
	assert.Equal(t, []string{"t", "u"}, names)

	require.NoError(t, store.DropTable("t"))
	_, err = store.Table("t")
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.ErrorIs(t, store.DropTable("t"), ErrTableNotFound)

	names, err = store.Tables()
	require.NoError(t, err)
	assert.Equal(t, []string{"u"}, names)
}

func TestTableStoreErrors(t *testing.T) {
	store := newStore(t)

	assert.Error(t, store.PutTable("", relation.MustParseTable([]string{"a"})))
	assert.Error(t, store.PutTable("a\x00b", relation.MustParseTable([]string{"a"})))

	bad := relation.NewDataTable([]string{"a"}, []relation.Row{relation.NewRow("r1", struct{}{})})
	assert.ErrorContains(t, store.PutTable("bad", bad), "failed to encode row 0 of bad")

	_, err := store.Table("missing")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestTableStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.db")
	store, err := NewTableStore(path)
	require.NoError(t, err)
	require.NoError(t, store.PutTable("t", relation.MustParseTable([]string{"a"}, "r1,x")))
	require.NoError(t, store.Close())

	store, err = NewTableStore(path)
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.Table("t")
	require.NoError(t, err)
	collected, err := relation.Collect(stored)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1,x"}, collected.Strings())
}

func TestJoinStoredTables(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.PutTable("orders", relation.MustParseTable([]string{"customer", "item"},
		"o1,c1,apple", "o2,c2,pear", "o3,c1,plum", "o4,c9,fig")))
	require.NoError(t, store.PutTable("customers", relation.MustParseTable([]string{"id", "name"},
		"c1,c1,ann", "c2,c2,ben", "c3,c3,cat")))

	orders, err := store.Table("orders")
	require.NoError(t, err)
	customers, err := store.Table("customers")
	require.NoError(t, err)

	left, err := join.NewTableSettings(join.Left, orders, []string{"customer"}, []string{"item"}, true)
	require.NoError(t, err)
	right, err := join.NewTableSettings(join.Right, customers, []string{"id"}, []string{"name"}, false)
	require.NoError(t, err)
	spec, err := join.NewBuilder(left, right).
		OutputRowOrder(join.LeftRight).
		RowKeyFactory(join.ConcatRowKeys("-"), true).
		Build()
	require.NoError(t, err)

	opts := join.DefaultOptions()
	opts.TempDir = t.TempDir()
	opts.MaxInMemoryRows = 1
	out, err := join.NewHybridHashJoin(spec, opts).JoinOutputCombined(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"item", "name"}, out.Columns())
	assert.Equal(t, []string{
		"o1-c1,apple,ann",
		"o2-c2,pear,ben",
		"o3-c1,plum,ann",
		"o4-?,fig,?",
	}, out.Strings())
}
