package join

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/wbrown/janus-join/relation"
)

// HybridHashJoin joins two tables that need not fit in memory. The smaller
// table is hash partitioned; partitions are spilled to disk under memory
// pressure and joined with their share of the bigger table after it has been
// streamed once.
type HybridHashJoin struct {
	spec    *Specification
	opts    Options
	monitor *ProgressMonitor
}

// NewHybridHashJoin creates a join of the tables bound to spec.
func NewHybridHashJoin(spec *Specification, opts Options) *HybridHashJoin {
	return &HybridHashJoin{
		spec:    spec,
		opts:    opts.withDefaults(),
		monitor: &ProgressMonitor{},
	}
}

// SetMaxOpenFiles bounds the number of simultaneously open spill files.
func (h *HybridHashJoin) SetMaxOpenFiles(n int) error {
	if n < 2 {
		return invalidf("at least 2 open files are required, got %d", n)
	}
	h.opts.MaxOpenFiles = n
	return nil
}

// Monitor returns the progress monitor of this join. Set its
// DesiredPartitionsOnDisk or AssumeMemoryLow before joining to force spilling.
func (h *HybridHashJoin) Monitor() *ProgressMonitor { return h.monitor }

// JoinOutputCombined returns matches and retained unmatched rows in one table.
func (h *HybridHashJoin) JoinOutputCombined(ctx context.Context) (*relation.DataTable, error) {
	r, err := h.join(ctx)
	if err != nil {
		return nil, err
	}
	return r.combined(), nil
}

// JoinOutputSplit returns matches and unmatched rows of each side separately.
func (h *HybridHashJoin) JoinOutputSplit(ctx context.Context) (*SplitOutput, error) {
	r, err := h.join(ctx)
	if err != nil {
		return nil, err
	}
	return r.split(), nil
}

// numPartitions leaves room for a hash and a probe file per partition.
func (h *HybridHashJoin) numPartitions(hashRows int64) int {
	p := int64(h.opts.MaxOpenFiles / 2)
	if hashRows < p {
		p = hashRows
	}
	if p < 1 {
		p = 1
	}
	return int(p)
}

func (h *HybridHashJoin) join(ctx context.Context) (r *joinRun, err error) {
	if err := h.opts.validate(); err != nil {
		return nil, err
	}
	h.monitor.reset()
	jctx := NewContext(h.opts.Handler)
	jctx.JoinBegin(h.spec)
	defer func() {
		var stats Stats
		if r != nil {
			stats = r.stats
		}
		jctx.JoinComplete(stats, err)
	}()

	r, err = newJoinRun(h.spec, h.opts, jctx)
	if err != nil {
		return nil, err
	}
	if !r.needsMatches() {
		return r, nil
	}
	if err := checkCanceled(ctx, "planning"); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(h.opts.TempDir, "janus-join-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create spill directory: %w", err)
	}
	defer func() {
		if rerr := os.RemoveAll(dir); rerr != nil {
			h.opts.Logger.Warn("removing spill directory", zap.String("dir", dir), zap.Error(rerr))
		}
	}()

	partitions := h.numPartitions(r.size(r.hashSide()))
	jctx.JoinPlanned(partitions, r.probe, r.size(r.hashSide()), r.size(r.probe))
	for i, g := range r.groups {
		if err := h.joinGroup(ctx, r, g, i, partitions, dir); err != nil {
			return nil, err
		}
	}
	if err := r.collectUnmatched(ctx); err != nil {
		return nil, err
	}
	r.stats.ProbeInMemory = h.monitor.ProbeRowsProcessedInMemory
	r.stats.ProbeFromDisk = h.monitor.ProbeRowsProcessedFromDisk
	return r, nil
}

// memoryLow reports whether another partition should be spilled.
func (h *HybridHashJoin) memoryLow(ps *partitionSet) bool {
	switch {
	case h.monitor.AssumeMemoryLow:
		return true
	case ps.spilledCount() < h.monitor.DesiredPartitionsOnDisk:
		return true
	case h.opts.MaxInMemoryRows > 0 && ps.inMemoryRows > h.opts.MaxInMemoryRows:
		return true
	}
	return false
}

// joinGroup runs build, probe and reconcile for one clause group.
func (h *HybridHashJoin) joinGroup(ctx context.Context, r *joinRun, g *Specification, group, partitions int, dir string) error {
	hashSide, probeSide := r.hashSide(), r.probe
	h.monitor.startGroup(partitions)
	ps := newPartitionSet(partitions, dir, group, h.opts, h.monitor)
	defer ps.close()

	err := r.jctx.ExecutePhase("build", func() (int64, error) {
		var n int64
		err := r.scan(ctx, hashSide, "build", func(row relation.Row) error {
			n++
			k, ok := r.key(g, hashSide, row)
			if !ok {
				return nil
			}
			p := k.partition(partitions)
			h.monitor.HashBucketSizes[p]++
			if err := ps.addHash(p, row, k); err != nil {
				return err
			}
			for h.memoryLow(ps) {
				i := ps.lowestInMemory()
				if i < 0 {
					break
				}
				if err := ps.spill(i); err != nil {
					return err
				}
				r.jctx.PartitionSpilled(i, hashSide, h.monitor.HashBucketSizes[i])
			}
			return nil
		})
		if err != nil {
			return n, err
		}
		return n, ps.closeWriters(hashFile)
	})
	if err != nil {
		return err
	}

	err = r.jctx.ExecutePhase("probe", func() (int64, error) {
		var n int64
		err := r.scan(ctx, probeSide, "probe", func(row relation.Row) error {
			n++
			k, ok := r.key(g, probeSide, row)
			if !ok {
				h.monitor.ProbeRowsProcessedInMemory++
				return nil
			}
			p := k.partition(partitions)
			h.monitor.ProbeBucketSizes[p]++
			part := ps.parts[p]
			if part.spilled {
				return ps.addProbe(p, row)
			}
			h.monitor.ProbeRowsProcessedInMemory++
			for _, i := range part.keys.lookup(k) {
				r.match(part.rows[i], row)
			}
			return nil
		})
		if err != nil {
			return n, err
		}
		return n, ps.closeWriters(probeFile)
	})
	if err != nil {
		return err
	}

	return r.jctx.ExecutePhase("reconcile", func() (int64, error) {
		var n int64
		for _, part := range ps.parts {
			if !part.spilled {
				continue
			}
			if err := checkCanceled(ctx, "reconcile"); err != nil {
				return n, err
			}
			probed, err := h.reconcile(ctx, r, g, ps, part)
			n += probed
			if err != nil {
				return n, err
			}
		}
		return n, nil
	})
}

// reconcile joins the spilled hash and probe rows of one partition.
func (h *HybridHashJoin) reconcile(ctx context.Context, r *joinRun, g *Specification, ps *partitionSet, part *partition) (int64, error) {
	start := time.Now()
	before := r.stats.Matches
	defer ps.remove(part)

	hashRows, err := ps.loadHashRows(part)
	if err != nil {
		return 0, err
	}
	probed, _, err := r.probeBlocks(ctx, g, hashRows, func() (relation.RowIterator, error) {
		return ps.openProbeRows(part)
	}, "reconcile")
	h.monitor.ProbeRowsProcessedFromDisk += probed
	if err != nil {
		return probed, err
	}
	r.jctx.PartitionReconciled(part.index, start, int64(len(hashRows)), probed, r.stats.Matches-before)
	return probed, nil
}
