package join

import (
	"sort"

	"github.com/wbrown/janus-join/relation"
)

// MatchedRows is a pair of working rows that satisfied the join condition.
type MatchedRows struct {
	Left, Right             relation.Row
	LeftOffset, RightOffset int64
}

// OffsetRow is an unmatched working row and its offset in the input.
type OffsetRow struct {
	Row    relation.Row
	Offset int64
}

// JoinContainer accumulates join results and returns them in its output
// order.
type JoinContainer interface {
	AddMatch(m MatchedRows)
	AddUnmatched(side Side, row OffsetRow)
	Matches() []MatchedRows
	Unmatched(side Side) []OffsetRow
}

// NewContainer returns the container implementing order. probe is the side
// whose rows drive the Deterministic match order.
func NewContainer(order OutputOrder, probe Side) JoinContainer {
	if order == Arbitrary {
		return &UnorderedContainer{}
	}
	return &SortedContainer{order: order, probe: probe}
}

// UnorderedContainer returns rows in insertion order.
type UnorderedContainer struct {
	matches   []MatchedRows
	unmatched sides[[]OffsetRow]
}

func (c *UnorderedContainer) AddMatch(m MatchedRows) {
	c.matches = append(c.matches, m)
}

func (c *UnorderedContainer) AddUnmatched(side Side, row OffsetRow) {
	c.unmatched[side] = append(c.unmatched[side], row)
}

func (c *UnorderedContainer) Matches() []MatchedRows { return c.matches }

func (c *UnorderedContainer) Unmatched(side Side) []OffsetRow { return c.unmatched[side] }

// SortedContainer orders rows by input offsets, so its output does not
// depend on partitioning or spilling. Deterministic sorts matches by probe
// offset, then hash offset; LeftRight by left offset, then right offset.
// Unmatched rows are sorted by offset.
type SortedContainer struct {
	UnorderedContainer
	order  OutputOrder
	probe  Side
	sorted bool
}

func (c *SortedContainer) AddMatch(m MatchedRows) {
	c.sorted = false
	c.UnorderedContainer.AddMatch(m)
}

func (c *SortedContainer) AddUnmatched(side Side, row OffsetRow) {
	c.sorted = false
	c.UnorderedContainer.AddUnmatched(side, row)
}

func (c *SortedContainer) Matches() []MatchedRows {
	c.sort()
	return c.matches
}

func (c *SortedContainer) Unmatched(side Side) []OffsetRow {
	c.sort()
	return c.unmatched[side]
}

func (c *SortedContainer) sort() {
	if c.sorted {
		return
	}
	c.sorted = true

	first := func(m MatchedRows) (int64, int64) { return m.LeftOffset, m.RightOffset }
	if c.order == Deterministic && c.probe == Right {
		first = func(m MatchedRows) (int64, int64) { return m.RightOffset, m.LeftOffset }
	}
	sort.SliceStable(c.matches, func(i, j int) bool {
		ai, bi := first(c.matches[i])
		aj, bj := first(c.matches[j])
		if ai != aj {
			return ai < aj
		}
		return bi < bj
	})
	for _, side := range []Side{Left, Right} {
		rows := c.unmatched[side]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Offset < rows[j].Offset })
	}
}
