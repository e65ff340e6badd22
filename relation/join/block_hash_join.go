package join

import (
	"context"
	"time"

	"github.com/wbrown/janus-join/relation"
)

// BlockHashJoin joins two tables entirely in memory. The smaller table is
// indexed, split into blocks of at most Options.MaxBlockRows rows, and the
// bigger table probes every block.
type BlockHashJoin struct {
	spec *Specification
	opts Options
}

// NewBlockHashJoin creates an in-memory join of the tables bound to spec.
func NewBlockHashJoin(spec *Specification, opts Options) *BlockHashJoin {
	return &BlockHashJoin{spec: spec, opts: opts.withDefaults()}
}

// JoinOutputCombined returns matches and retained unmatched rows in one table.
func (j *BlockHashJoin) JoinOutputCombined(ctx context.Context) (*relation.DataTable, error) {
	r, err := j.join(ctx)
	if err != nil {
		return nil, err
	}
	return r.combined(), nil
}

// JoinOutputSplit returns matches and unmatched rows of each side separately.
func (j *BlockHashJoin) JoinOutputSplit(ctx context.Context) (*SplitOutput, error) {
	r, err := j.join(ctx)
	if err != nil {
		return nil, err
	}
	return r.split(), nil
}

func (j *BlockHashJoin) join(ctx context.Context) (r *joinRun, err error) {
	if err := j.opts.validate(); err != nil {
		return nil, err
	}
	jctx := NewContext(j.opts.Handler)
	jctx.JoinBegin(j.spec)
	defer func() {
		var stats Stats
		if r != nil {
			stats = r.stats
		}
		jctx.JoinComplete(stats, err)
	}()

	r, err = newJoinRun(j.spec, j.opts, jctx)
	if err != nil {
		return nil, err
	}
	if !r.needsMatches() {
		return r, nil
	}
	if err := checkCanceled(ctx, "planning"); err != nil {
		return nil, err
	}

	hashSide := r.hashSide()
	jctx.JoinPlanned(1, r.probe, r.size(hashSide), r.size(r.probe))
	for _, g := range r.groups {
		if err := r.blockJoinGroup(ctx, g); err != nil {
			return nil, err
		}
	}
	if err := r.collectUnmatched(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// blockJoinGroup joins the full inputs under one clause group in memory.
func (r *joinRun) blockJoinGroup(ctx context.Context, g *Specification) error {
	var hashRows []relation.Row
	err := r.jctx.ExecutePhase("build", func() (int64, error) {
		err := r.scan(ctx, r.hashSide(), "build", func(row relation.Row) error {
			hashRows = append(hashRows, row)
			return nil
		})
		return int64(len(hashRows)), err
	})
	if err != nil {
		return err
	}

	return r.jctx.ExecutePhase("probe", func() (int64, error) {
		start := time.Now()
		before := r.stats.Matches
		probed, blocks, err := r.probeBlocks(ctx, g, hashRows, func() (relation.RowIterator, error) {
			return r.rows(r.probe), nil
		}, "probe")
		r.stats.ProbeInMemory += probed
		r.jctx.BlockJoin(start, blocks, int64(len(hashRows)), probed, r.stats.Matches-before)
		return probed, err
	})
}
