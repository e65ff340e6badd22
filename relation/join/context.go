package join

import (
	"context"
	"errors"
	"time"

	"github.com/wbrown/janus-join/relation/annotations"
)

// Context provides annotation points for join execution tracking.
type Context interface {
	// Join lifecycle
	JoinBegin(spec *Specification)
	JoinPlanned(partitions int, probe Side, hashSize, probeSize int64)
	JoinComplete(stats Stats, err error)

	// Phase operations; fn returns the number of rows the phase processed
	ExecutePhase(name string, fn func() (int64, error)) error

	// Partition lifecycle
	PartitionSpilled(partition int, side Side, rows int64)
	PartitionReconciled(partition int, start time.Time, hashRows, probeRows, matches int64)

	// In-memory joins
	BlockJoin(start time.Time, blocks int, hashRows, probeRows, matches int64)

	// Output
	OutputMaterialized(name string, columns []string, rows int64)

	// Get underlying collector
	Collector() *annotations.Collector
}

// Stats summarizes a finished join.
type Stats struct {
	Matches        int64
	LeftUnmatched  int64
	RightUnmatched int64
	ProbeInMemory  int64
	ProbeFromDisk  int64
}

// NewContext creates an appropriate context based on whether annotations are needed.
func NewContext(handler annotations.Handler) Context {
	if handler == nil {
		return &BaseContext{}
	}
	return &AnnotatedContext{
		collector: annotations.NewCollector(handler),
	}
}

// BaseContext provides a no-op implementation with zero overhead.
type BaseContext struct{}

func (c *BaseContext) JoinBegin(spec *Specification) {}

func (c *BaseContext) JoinPlanned(partitions int, probe Side, hashSize, probeSize int64) {}

func (c *BaseContext) JoinComplete(stats Stats, err error) {}

func (c *BaseContext) ExecutePhase(name string, fn func() (int64, error)) error {
	_, err := fn()
	return err
}

func (c *BaseContext) PartitionSpilled(partition int, side Side, rows int64) {}

func (c *BaseContext) PartitionReconciled(partition int, start time.Time, hashRows, probeRows, matches int64) {
}

func (c *BaseContext) BlockJoin(start time.Time, blocks int, hashRows, probeRows, matches int64) {}

func (c *BaseContext) OutputMaterialized(name string, columns []string, rows int64) {}

func (c *BaseContext) Collector() *annotations.Collector {
	return nil
}

// AnnotatedContext provides full annotation tracking
type AnnotatedContext struct {
	BaseContext
	collector *annotations.Collector
	joinStart time.Time
}

func (c *AnnotatedContext) JoinBegin(spec *Specification) {
	c.joinStart = time.Now()
	data := map[string]interface{}{
		"mode":  spec.Mode().String(),
		"order": spec.OutputRowOrder().String(),
	}
	for _, side := range []Side{Left, Right} {
		set := spec.Settings(side)
		data[side.String()+".columns"] = set.Columns()
		if set.Table() != nil {
			data[side.String()+".size"] = set.Table().Size()
		}
	}
	c.collector.Add(annotations.Event{
		Name:  annotations.JoinInvoked,
		Start: c.joinStart,
		Data:  data,
	})
}

func (c *AnnotatedContext) JoinPlanned(partitions int, probe Side, hashSize, probeSize int64) {
	c.collector.Add(annotations.Event{
		Name:  annotations.JoinPlanned,
		Start: time.Now(),
		Data: map[string]interface{}{
			"partitions": partitions,
			"probe.side": probe.String(),
			"hash.size":  hashSize,
			"probe.size": probeSize,
		},
	})
}

func (c *AnnotatedContext) JoinComplete(stats Stats, err error) {
	data := map[string]interface{}{
		"success":         err == nil,
		"matches":         stats.Matches,
		"left.unmatched":  stats.LeftUnmatched,
		"right.unmatched": stats.RightUnmatched,
		"probe.memory":    stats.ProbeInMemory,
		"probe.disk":      stats.ProbeFromDisk,
	}
	if err != nil {
		data["error"] = err.Error()
		c.collector.AddTiming(errorEvent(err), c.joinStart, map[string]interface{}{"error": err.Error()})
	}
	c.collector.AddTiming(annotations.JoinComplete, c.joinStart, data)
}

// errorEvent classifies a join error for annotation.
func errorEvent(err error) string {
	switch {
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return annotations.ErrorCanceled
	case errors.Is(err, ErrInvalidSettings):
		return annotations.ErrorSettings
	default:
		return annotations.ErrorSpill
	}
}

func (c *AnnotatedContext) ExecutePhase(name string, fn func() (int64, error)) error {
	start := time.Now()
	c.collector.Add(annotations.Event{
		Name:  annotations.PhaseBegin,
		Start: start,
		Data: map[string]interface{}{
			"phase": name,
		},
	})

	rows, err := fn()

	data := map[string]interface{}{
		"phase":   name,
		"rows":    rows,
		"success": err == nil,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	c.collector.AddTiming(annotations.PhaseComplete, start, data)
	return err
}

func (c *AnnotatedContext) PartitionSpilled(partition int, side Side, rows int64) {
	c.collector.Add(annotations.Event{
		Name:  annotations.PartitionSpilled,
		Start: time.Now(),
		Data: map[string]interface{}{
			"partition": partition,
			"side":      side.String(),
			"rows":      rows,
		},
	})
}

func (c *AnnotatedContext) PartitionReconciled(partition int, start time.Time, hashRows, probeRows, matches int64) {
	c.collector.AddTiming(annotations.PartitionReconciled, start, map[string]interface{}{
		"partition":  partition,
		"hash.rows":  hashRows,
		"probe.rows": probeRows,
		"matches":    matches,
	})
}

func (c *AnnotatedContext) BlockJoin(start time.Time, blocks int, hashRows, probeRows, matches int64) {
	c.collector.AddTiming(annotations.BlockJoin, start, map[string]interface{}{
		"blocks":     blocks,
		"hash.rows":  hashRows,
		"probe.rows": probeRows,
		"matches":    matches,
	})
}

func (c *AnnotatedContext) OutputMaterialized(name string, columns []string, rows int64) {
	c.collector.Add(annotations.Event{
		Name:  annotations.OutputMaterialized,
		Start: time.Now(),
		Data: map[string]interface{}{
			"output":  name,
			"columns": columns,
			"rows":    rows,
		},
	})
}

func (c *AnnotatedContext) Collector() *annotations.Collector {
	return c.collector
}
