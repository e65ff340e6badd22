package join

import (
	"fmt"
	"strconv"

	"github.com/wbrown/janus-join/relation"
)

// RowKeyFactory creates the key of an output row from its source rows.
// left or right is nil when the output row has no row from that side.
type RowKeyFactory func(left, right *relation.Row) relation.RowKey

// SequenceRowKeys returns a factory producing Row0, Row1, ... in call order.
// The counter belongs to the factory: a Specification holding it numbers the
// rows of its joins consecutively, so a second join continues where the
// first one stopped. Build a new specification to start again at Row0.
func SequenceRowKeys() RowKeyFactory {
	var next int64
	return func(_, _ *relation.Row) relation.RowKey {
		key := relation.RowKey("Row" + strconv.FormatInt(next, 10))
		next++
		return key
	}
}

// ConcatRowKeys returns a factory joining both keys with sep. An absent side
// is written as "?".
func ConcatRowKeys(sep string) RowKeyFactory {
	return func(left, right *relation.Row) relation.RowKey {
		l, r := "?", "?"
		if left != nil {
			l = string(left.Key)
		}
		if right != nil {
			r = string(right.Key)
		}
		return relation.RowKey(l + sep + r)
	}
}

// KeepRowKeys returns a factory that reuses the left key, or the right key
// for right-only rows. Check KeepRowKeysApplicable before using it.
func KeepRowKeys() RowKeyFactory {
	return func(left, right *relation.Row) relation.RowKey {
		if left != nil {
			return left.Key
		}
		return right.Key
	}
}

// KeepRowKeysApplicable reports whether KeepRowKeys produces unique keys for
// spec. Matches need a conjunctive join with a row key clause on both sides,
// so that matched rows share their key. A combined output holding unmatched
// rows of both sides additionally needs that clause to be the only one, or
// rows with equal keys could end up unmatched on both sides.
func KeepRowKeysApplicable(spec *Specification, splitOutput bool) error {
	left, right := spec.Settings(Left), spec.Settings(Right)
	rowKeyClauses := 0
	for i := range left.joinColumns {
		if left.joinColumns[i] == RowKeyColumn && right.joinColumns[i] == RowKeyColumn {
			rowKeyClauses++
		}
	}

	if spec.RetainMatched() && (rowKeyClauses == 0 || (!spec.Conjunctive() && spec.NumJoinClauses() > 1)) {
		return fmt.Errorf("%w: keeping row keys requires matching rows on %s = %s",
			ErrInvalidSettings, RowKeyColumn, RowKeyColumn)
	}

	bothUnmatched := spec.RetainUnmatched(Left) && spec.RetainUnmatched(Right)
	onlyRowKeys := rowKeyClauses == spec.NumJoinClauses()
	if !splitOutput && bothUnmatched && !onlyRowKeys {
		return fmt.Errorf("%w: keeping row keys in a single output with unmatched rows of both sides requires joining only on %s",
			ErrInvalidSettings, RowKeyColumn)
	}
	return nil
}
