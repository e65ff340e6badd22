package join

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-join/relation"
)

func TestJoinKeys(t *testing.T) {
	h := newKeyHasher(relation.Strict)

	a, ok := h.key([]relation.Value{"x", int64(1)})
	require.True(t, ok)
	b, ok := h.key([]relation.Value{"x", int64(1)})
	require.True(t, ok)
	assert.True(t, a.equal(b))
	assert.Equal(t, a.hash, b.hash)

	c, ok := h.key([]relation.Value{"x", int32(1)})
	require.True(t, ok)
	assert.False(t, a.equal(c))

	// column boundaries are part of the key
	d, _ := h.key([]relation.Value{"ab", "c"})
	e, _ := h.key([]relation.Value{"a", "bc"})
	assert.False(t, d.equal(e))

	_, ok = h.key([]relation.Value{"x", nil})
	assert.False(t, ok)

	pos, _ := h.key([]relation.Value{0.0})
	neg, _ := h.key([]relation.Value{math.Copysign(0, -1)})
	assert.Equal(t, pos.hash, neg.hash)
	assert.True(t, pos.equal(neg))

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	t1, ok := h.key([]relation.Value{ts, []byte("raw"), true, float32(1.5)})
	require.True(t, ok)
	t2, _ := h.key([]relation.Value{ts, []byte("raw"), true, float32(1.5)})
	assert.True(t, t1.equal(t2))

	for n := 1; n < 10; n++ {
		p := a.partition(n)
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, n)
	}
}

func TestJoinKeysUnderComparisonModes(t *testing.T) {
	long := newKeyHasher(relation.NumericAsLong)
	a, _ := long.key([]relation.Value{1})
	b, _ := long.key([]relation.Value{int32(1)})
	c, _ := long.key([]relation.Value{int64(1)})
	assert.True(t, a.equal(b))
	assert.True(t, a.equal(c))

	str := newKeyHasher(relation.AsString)
	d, _ := str.key([]relation.Value{int64(42)})
	e, _ := str.key([]relation.Value{"42"})
	assert.True(t, d.equal(e))
}

func TestKeyIndex(t *testing.T) {
	h := newKeyHasher(relation.Strict)
	x := newKeyIndex(4)

	k1, _ := h.key([]relation.Value{"a"})
	k2, _ := h.key([]relation.Value{"b"})
	x.add(k1, 0)
	x.add(k2, 1)
	x.add(k1, 2)

	assert.Equal(t, []int{0, 2}, x.lookup(k1))
	assert.Equal(t, []int{1}, x.lookup(k2))
	assert.Equal(t, 3, x.size())

	missing, _ := h.key([]relation.Value{"c"})
	assert.Nil(t, x.lookup(missing))

	// a forged collision is resolved by value comparison
	forged := joinKey{hash: k1.hash, values: []relation.Value{"z"}}
	x.add(forged, 3)
	assert.Equal(t, []int{0, 2}, x.lookup(k1))
	assert.Equal(t, []int{3}, x.lookup(forged))
}
