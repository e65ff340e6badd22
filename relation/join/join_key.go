package join

import (
	"github.com/cespare/xxhash/v2"

	"github.com/wbrown/janus-join/relation"
)

// joinKey is the hashable form of a row's join values. Values are normalized
// under the comparison mode, so equal keys hash equally.
type joinKey struct {
	hash   uint64
	values []relation.Value
}

// keyHasher builds join keys, reusing its digest and encoding buffer.
type keyHasher struct {
	mode   relation.ComparisonMode
	digest *xxhash.Digest
	buf    []byte
}

func newKeyHasher(mode relation.ComparisonMode) *keyHasher {
	return &keyHasher{mode: mode, digest: xxhash.New(), buf: make([]byte, 0, 64)}
}

// key returns the join key of values. ok is false when a value is missing;
// such rows never match.
func (h *keyHasher) key(values []relation.Value) (k joinKey, ok bool) {
	h.digest.Reset()
	normalized := make([]relation.Value, len(values))
	for i, v := range values {
		if relation.IsMissing(v) {
			return joinKey{}, false
		}
		v = h.mode.Normalize(v)
		normalized[i] = v
		h.buf = h.appendHashable(h.buf[:0], v)
		_, _ = h.digest.Write(h.buf)
	}
	return joinKey{hash: h.digest.Sum64(), values: normalized}, true
}

func (h *keyHasher) appendHashable(buf []byte, v relation.Value) []byte {
	// equal floats must encode equally
	switch f := v.(type) {
	case float64:
		if f == 0 {
			v = float64(0)
		}
	case float32:
		if f == 0 {
			v = float32(0)
		}
	}
	// working rows hold encodable values only
	out, _ := relation.AppendValue(buf, v)
	return out
}

// partition maps the key onto one of n partitions.
func (k joinKey) partition(n int) int {
	return int(k.hash % uint64(n))
}

// equal compares normalized key values.
func (k joinKey) equal(other joinKey) bool {
	if k.hash != other.hash || len(k.values) != len(other.values) {
		return false
	}
	for i := range k.values {
		if !relation.ValuesEqual(k.values[i], other.values[i]) {
			return false
		}
	}
	return true
}

// keyIndex maps join keys to the positions of the rows carrying them.
// Hash collisions are resolved by comparing values.
type keyIndex struct {
	m    map[uint64][]keyEntry
	rows int
}

type keyEntry struct {
	key  joinKey
	rows []int
}

func newKeyIndex(expectedSize int) *keyIndex {
	return &keyIndex{m: make(map[uint64][]keyEntry, expectedSize)}
}

// add records that row carries key.
func (x *keyIndex) add(key joinKey, row int) {
	x.rows++
	entries := x.m[key.hash]
	for i := range entries {
		if entries[i].key.equal(key) {
			entries[i].rows = append(entries[i].rows, row)
			return
		}
	}
	x.m[key.hash] = append(entries, keyEntry{key: key, rows: []int{row}})
}

// lookup returns the rows carrying key, in insertion order.
func (x *keyIndex) lookup(key joinKey) []int {
	for _, e := range x.m[key.hash] {
		if e.key.equal(key) {
			return e.rows
		}
	}
	return nil
}

// size returns the number of indexed rows.
func (x *keyIndex) size() int { return x.rows }
