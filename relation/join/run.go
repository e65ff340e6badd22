package join

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/wbrown/janus-join/relation"
)

const (
	// LeftRowOffsetColumn and RightRowOffsetColumn carry source offsets in
	// outputs of joins run with Options.ExtractRowOffsets.
	LeftRowOffsetColumn  = "$LeftRowOffset$"
	RightRowOffsetColumn = "$RightRowOffset$"
)

// joinRun is the state of one join invocation over working rows: condensed
// rows that carry their input offset in a trailing RowOffsetColumn.
type joinRun struct {
	spec   *Specification
	work   *Specification
	groups []*Specification
	opts   Options
	jctx   Context
	probe  Side

	hasher    *keyHasher
	container JoinContainer
	matched   sides[*roaring64.Bitmap]
	seen      map[[2]int64]struct{}
	stats     Stats

	// input column holding offsets when Options.ExtractRowOffsets is set
	offsetColumns sides[int]
}

func newJoinRun(spec *Specification, opts Options, jctx Context) (*joinRun, error) {
	r := &joinRun{
		spec:          spec,
		opts:          opts,
		jctx:          jctx,
		hasher:        newKeyHasher(spec.ComparisonMode()),
		matched:       sides[*roaring64.Bitmap]{roaring64.New(), roaring64.New()},
		offsetColumns: sides[int]{-1, -1},
	}

	var sizes sides[int64]
	for _, side := range []Side{Left, Right} {
		set := spec.Settings(side)
		if set.Table() == nil {
			return nil, invalidf("%s settings are not bound to a table", side)
		}
		sizes[side] = set.Table().Size()
		if opts.ExtractRowOffsets {
			idx := relation.ColumnIndex(set.Columns(), RowOffsetColumn)
			if idx < 0 {
				return nil, invalidf("%s table has no %s column to extract row offsets from", side, RowOffsetColumn)
			}
			r.offsetColumns[side] = idx
		}
	}

	// the bigger table probes; on ties the left one
	r.probe = Left
	if sizes[Right] > sizes[Left] {
		r.probe = Right
	}

	r.work = spec.With(spec.Settings(Left).Condensed(true), spec.Settings(Right).Condensed(true))
	if spec.Conjunctive() {
		r.groups = []*Specification{r.work}
	} else {
		for i := 0; i < r.work.NumJoinClauses(); i++ {
			r.groups = append(r.groups, r.work.UsingOnlyJoinClause(i))
		}
		r.seen = make(map[[2]int64]struct{})
	}
	r.container = NewContainer(spec.OutputRowOrder(), r.probe)
	return r, nil
}

func (r *joinRun) hashSide() Side { return r.probe.Other() }

// size returns the row count of a side's input.
func (r *joinRun) size(side Side) int64 { return r.spec.Settings(side).Table().Size() }

// rows starts a scan over a side's input as working rows.
func (r *joinRun) rows(side Side) relation.RowIterator {
	return &workingIterator{
		it:        r.spec.Settings(side).Table().Iterator(),
		work:      r.work.Settings(side),
		side:      side,
		offsetCol: r.offsetColumns[side],
	}
}

// scan calls fn for every working row of a side, polling ctx per row.
func (r *joinRun) scan(ctx context.Context, side Side, phase string, fn func(relation.Row) error) error {
	it := r.rows(side)
	defer it.Close()
	for it.Next() {
		if err := checkCanceled(ctx, phase); err != nil {
			return err
		}
		if err := fn(it.Row()); err != nil {
			return err
		}
	}
	return it.Err()
}

// key returns the join key of a working row under a clause group.
func (r *joinRun) key(g *Specification, side Side, row relation.Row) (joinKey, bool) {
	return r.hasher.key(g.Settings(side).Get(row))
}

// needsMatches reports whether the join has to look for matches at all.
func (r *joinRun) needsMatches() bool {
	return r.spec.RetainMatched() || r.spec.RetainUnmatched(Left) || r.spec.RetainUnmatched(Right)
}

// match records that a hash row and a probe row satisfy the join condition.
func (r *joinRun) match(hashRow, probeRow relation.Row) {
	left, right := hashRow, probeRow
	if r.probe == Left {
		left, right = probeRow, hashRow
	}
	m := MatchedRows{
		Left:        left,
		Right:       right,
		LeftOffset:  r.work.Settings(Left).Offset(left),
		RightOffset: r.work.Settings(Right).Offset(right),
	}
	r.matched[Left].Add(uint64(m.LeftOffset))
	r.matched[Right].Add(uint64(m.RightOffset))

	if r.seen != nil {
		pair := [2]int64{m.LeftOffset, m.RightOffset}
		if _, dup := r.seen[pair]; dup {
			return
		}
		r.seen[pair] = struct{}{}
	}
	r.stats.Matches++
	if r.spec.RetainMatched() {
		r.container.AddMatch(m)
	}
}

// probeBlocks joins the probe rows returned by openProbe against hashRows.
// The hash rows are indexed in blocks of at most Options.MaxBlockRows; the
// probe rows are scanned once per block. It returns the number of probe rows
// and blocks.
func (r *joinRun) probeBlocks(ctx context.Context, g *Specification, hashRows []relation.Row,
	openProbe func() (relation.RowIterator, error), phase string) (int64, int, error) {

	blockSize := r.opts.MaxBlockRows
	if blockSize <= 0 || blockSize > len(hashRows) {
		blockSize = len(hashRows)
	}
	hashSide, probeSide := r.hashSide(), r.probe

	var probed int64
	blocks := 0
	for start := 0; start < len(hashRows) || blocks == 0; start += blockSize {
		end := start + blockSize
		if end > len(hashRows) {
			end = len(hashRows)
		}
		blocks++

		index := newKeyIndex(end - start)
		for i := start; i < end; i++ {
			if err := checkCanceled(ctx, phase); err != nil {
				return probed, blocks, err
			}
			if k, ok := r.key(g, hashSide, hashRows[i]); ok {
				index.add(k, i)
			}
		}

		it, err := openProbe()
		if err != nil {
			return probed, blocks, err
		}
		for it.Next() {
			if err := checkCanceled(ctx, phase); err != nil {
				it.Close()
				return probed, blocks, err
			}
			if blocks == 1 {
				probed++
			}
			row := it.Row()
			k, ok := r.key(g, probeSide, row)
			if !ok {
				continue
			}
			for _, i := range index.lookup(k) {
				r.match(hashRows[i], row)
			}
		}
		err = it.Err()
		if cerr := it.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return probed, blocks, err
		}
		if blockSize == 0 {
			break
		}
	}
	return probed, blocks, nil
}

// collectUnmatched rescans the retained sides for rows that never matched.
func (r *joinRun) collectUnmatched(ctx context.Context) error {
	for _, side := range []Side{Left, Right} {
		if !r.spec.RetainUnmatched(side) {
			continue
		}
		work := r.work.Settings(side)
		matched := r.matched[side]
		var unmatched int64
		err := r.jctx.ExecutePhase(side.String()+" unmatched", func() (int64, error) {
			err := r.scan(ctx, side, "unmatched rows", func(row relation.Row) error {
				off := work.Offset(row)
				if !matched.Contains(uint64(off)) {
					r.container.AddUnmatched(side, OffsetRow{Row: row, Offset: off})
					unmatched++
				}
				return nil
			})
			return unmatched, err
		})
		if err != nil {
			return err
		}
		if side == Left {
			r.stats.LeftUnmatched = unmatched
		} else {
			r.stats.RightUnmatched = unmatched
		}
	}
	return nil
}

// workingIterator condenses input rows and tags them with their offset.
type workingIterator struct {
	it        relation.RowIterator
	work      *TableSettings
	side      Side
	offsetCol int
	pos       int64
	row       relation.Row
	err       error
}

func (w *workingIterator) Next() bool {
	if w.err != nil || !w.it.Next() {
		return false
	}
	row := w.it.Row()
	off := w.pos
	w.pos++
	if w.offsetCol >= 0 {
		v, ok := row.Values[w.offsetCol].(int64)
		if !ok {
			w.err = fmt.Errorf("%s row %s: %s must be an int64, got %T", w.side, row.Key, RowOffsetColumn, row.Values[w.offsetCol])
			return false
		}
		off = v
	}
	w.row = w.work.CondenseRow(row, off)
	// every working row must be spillable, whether or not it is spilled
	for _, v := range w.row.Values {
		if _, err := relation.Type(v); err != nil {
			w.err = fmt.Errorf("%s row %s: %w", w.side, row.Key, err)
			return false
		}
	}
	return true
}

func (w *workingIterator) Row() relation.Row { return w.row }

func (w *workingIterator) Err() error {
	if w.err != nil {
		return w.err
	}
	return w.it.Err()
}

func (w *workingIterator) Close() error { return w.it.Close() }
