package join

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-join/relation"
)

var smallColumns = []string{"Join Column", "Nonjoin1", "Nonjoin2"}

// joinTestInput is a join fixture with its expected results. Result rows use
// the compact "key,v1,v2" format with "?" for missing cells.
type joinTestInput struct {
	name                string
	left, right         *relation.DataTable
	leftJoin, rightJoin []string
	conjunctive         bool

	inner              []string // matches in left-right order
	innerDeterministic []string // matches in probe-hash order
	leftOuter          []string // left unmatched rows of the combined output
	rightOuter         []string
	leftProjected      []string // left unmatched rows of the split output
	rightProjected     []string
}

func smallLeft() *relation.DataTable {
	return relation.MustParseTable(smallColumns,
		"A,A,1,2",
		"B,B,3,4",
		"X,X,100,101")
}

func smallRight() *relation.DataTable {
	return relation.MustParseTable(smallColumns,
		"X,X,102,103",
		"B,B,5,6",
		"C,?,7,8",
		"D,D,9,10")
}

// smallInput produces matches and unmatched rows on both sides.
func smallInput(name string, leftJoin, rightJoin []string, conjunctive bool) joinTestInput {
	return joinTestInput{
		name:               name,
		left:               smallLeft(),
		right:              smallRight(),
		leftJoin:           leftJoin,
		rightJoin:          rightJoin,
		conjunctive:        conjunctive,
		inner:              []string{"B+B,3,6", "X+X,100,103"},
		innerDeterministic: []string{"X+X,100,103", "B+B,3,6"},
		leftOuter:          []string{"A+?,1,?"},
		rightOuter:         []string{"?+C,?,8", "?+D,?,10"},
		leftProjected:      []string{"A,1"},
		rightProjected:     []string{"C,8", "D,10"},
	}
}

func conjunctiveInputs() []joinTestInput {
	jc := []string{"Join Column"}
	rowKey := []string{RowKeyColumn}

	self := smallLeft()
	selfJoin := joinTestInput{
		name:               "self join",
		left:               self,
		right:              self,
		leftJoin:           jc,
		rightJoin:          jc,
		conjunctive:        true,
		inner:              []string{"A+A,1,2", "B+B,3,4", "X+X,100,101"},
		innerDeterministic: []string{"A+A,1,2", "B+B,3,4", "X+X,100,101"},
	}

	emptyJoinOnRowKeys := joinTestInput{
		name:           "empty join on row keys",
		left:           smallLeft(),
		right:          smallRight(),
		leftJoin:       []string{RowKeyColumn, RowKeyColumn},
		rightJoin:      []string{"Nonjoin1", "Nonjoin2"},
		conjunctive:    true,
		leftOuter:      []string{"A+?,1,?", "B+?,3,?", "X+?,100,?"},
		rightOuter:     []string{"?+X,?,103", "?+B,?,6", "?+C,?,8", "?+D,?,10"},
		leftProjected:  []string{"A,1", "B,3", "X,100"},
		rightProjected: []string{"X,103", "B,6", "C,8", "D,10"},
	}

	emptyHashTable := joinTestInput{
		name:           "empty hash table",
		left:           relation.MustParseTable(smallColumns),
		right:          smallRight(),
		leftJoin:       jc,
		rightJoin:      jc,
		conjunctive:    true,
		rightOuter:     []string{"?+X,?,103", "?+B,?,6", "?+C,?,8", "?+D,?,10"},
		rightProjected: []string{"X,103", "B,6", "C,8", "D,10"},
	}

	singleInnerJoin := joinTestInput{
		name:               "single inner join",
		left:               relation.MustParseTable(smallColumns, "Left B,B,3,4"),
		right:              relation.MustParseTable(smallColumns, "Right B,B,5,6"),
		leftJoin:           jc,
		rightJoin:          jc,
		conjunctive:        true,
		inner:              []string{"Left B+Right B,3,6"},
		innerDeterministic: []string{"Left B+Right B,3,6"},
	}

	return []joinTestInput{
		smallInput("all result types", jc, jc, true),
		selfJoin,
		smallInput("mix row key with normal column", rowKey, jc, true),
		smallInput("join on row keys", rowKey, rowKey, true),
		smallInput("join on redundant columns",
			[]string{RowKeyColumn, "Join Column", "Join Column", RowKeyColumn},
			[]string{RowKeyColumn, "Join Column", "Join Column", RowKeyColumn}, true),
		emptyJoinOnRowKeys,
		emptyHashTable,
		singleInnerJoin,
	}
}

func disjunctiveInputs() []joinTestInput {
	return []joinTestInput{
		smallInput("single column match any", []string{RowKeyColumn}, []string{RowKeyColumn}, false),
		smallInput("non additional match any",
			[]string{RowKeyColumn, "Join Column"}, []string{RowKeyColumn, "Nonjoin1"}, false),
		smallInput("redundant match any",
			[]string{RowKeyColumn, RowKeyColumn}, []string{RowKeyColumn, RowKeyColumn}, false),
	}
}

func (in joinTestInput) spec(t *testing.T, mode Mode, order OutputOrder) *Specification {
	t.Helper()
	left, err := NewTableSettings(Left, in.left, in.leftJoin, []string{"Nonjoin1"}, mode.RetainUnmatched(Left))
	require.NoError(t, err)
	right, err := NewTableSettings(Right, in.right, in.rightJoin, []string{"Nonjoin2"}, mode.RetainUnmatched(Right))
	require.NoError(t, err)

	spec, err := NewBuilder(left, right).
		ColumnNameDisambiguator(SuffixDisambiguator("*")).
		MergeJoinColumns(false).
		Conjunctive(in.conjunctive).
		OutputRowOrder(order).
		RowKeyFactory(ConcatRowKeys("+"), true).
		RetainMatched(mode.RetainMatched()).
		Build()
	require.NoError(t, err)
	return spec
}

func (in joinTestInput) matches(order OutputOrder) []string {
	if order == Deterministic {
		return in.innerDeterministic
	}
	return in.inner
}

// combined returns the expected single table output.
func (in joinTestInput) combined(mode Mode, order OutputOrder) []string {
	rows := []string{}
	if mode.RetainMatched() {
		rows = append(rows, in.matches(order)...)
	}
	if mode.RetainUnmatched(Left) {
		rows = append(rows, in.leftOuter...)
	}
	if mode.RetainUnmatched(Right) {
		rows = append(rows, in.rightOuter...)
	}
	return rows
}

// joiner is implemented by both join algorithms.
type joiner interface {
	JoinOutputCombined(ctx context.Context) (*relation.DataTable, error)
	JoinOutputSplit(ctx context.Context) (*SplitOutput, error)
}

// execution configures a join algorithm and execution mode.
type execution struct {
	name   string
	create func(t *testing.T, spec *Specification) joiner
}

func hybrid(name string, setOptions func(*Options), setJoin func(*HybridHashJoin)) execution {
	return execution{
		name: name,
		create: func(t *testing.T, spec *Specification) joiner {
			opts := DefaultOptions()
			opts.TempDir = t.TempDir()
			if setOptions != nil {
				setOptions(&opts)
			}
			h := NewHybridHashJoin(spec, opts)
			if setJoin != nil {
				setJoin(h)
			}
			return h
		},
	}
}

func memoryLow(h *HybridHashJoin) { h.Monitor().AssumeMemoryLow = true }

func executions() []execution {
	return []execution{
		hybrid("in memory", nil, nil),
		hybrid("desired partitions on disk", nil, func(h *HybridHashJoin) {
			h.Monitor().DesiredPartitionsOnDisk = 100
		}),
		hybrid("one partition on disk", nil, func(h *HybridHashJoin) {
			h.Monitor().DesiredPartitionsOnDisk = 1
		}),
		hybrid("memory low", nil, memoryLow),
		hybrid("in-memory row limit", func(o *Options) { o.MaxInMemoryRows = 1 }, nil),
		hybrid("two open files", nil, func(h *HybridHashJoin) {
			memoryLow(h)
			_ = h.SetMaxOpenFiles(2)
		}),
		hybrid("zstd spill files", func(o *Options) {
			o.Compression = Zstd
			o.MaxBlockRows = 1
		}, memoryLow),
		hybrid("lz4 spill files", func(o *Options) { o.Compression = LZ4 }, memoryLow),
		hybrid("uncompressed spill files", func(o *Options) { o.Compression = NoCompression }, memoryLow),
		{
			name: "block hash join",
			create: func(t *testing.T, spec *Specification) joiner {
				return NewBlockHashJoin(spec, DefaultOptions())
			},
		},
		{
			name: "block hash join with single row blocks",
			create: func(t *testing.T, spec *Specification) joiner {
				opts := DefaultOptions()
				opts.MaxBlockRows = 1
				return NewBlockHashJoin(spec, opts)
			},
		},
	}
}

// cancelingTable cancels a context once a given number of rows was read.
type cancelingTable struct {
	relation.Table
	cancel context.CancelFunc
	after  int
}

func (c *cancelingTable) Iterator() relation.RowIterator {
	return &cancelingIterator{RowIterator: c.Table.Iterator(), table: c}
}

type cancelingIterator struct {
	relation.RowIterator
	table *cancelingTable
	read  int
}

func (it *cancelingIterator) Next() bool {
	it.read++
	if it.read > it.table.after {
		it.table.cancel()
	}
	return it.RowIterator.Next()
}

// failingTable fails its scans after the given number of rows.
type failingTable struct {
	relation.Table
	after int
	err   error
}

func (f *failingTable) Iterator() relation.RowIterator {
	return &failingIterator{RowIterator: f.Table.Iterator(), table: f}
}

type failingIterator struct {
	relation.RowIterator
	table *failingTable
	read  int
}

func (it *failingIterator) Next() bool {
	if it.read >= it.table.after {
		return false
	}
	it.read++
	return it.RowIterator.Next()
}

func (it *failingIterator) Err() error {
	if it.read >= it.table.after {
		return it.table.err
	}
	return nil
}
