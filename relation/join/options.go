package join

import (
	"go.uber.org/zap"

	"github.com/wbrown/janus-join/relation/annotations"
)

// DefaultMaxOpenFiles is the spill file budget used when Options.MaxOpenFiles
// is unset.
const DefaultMaxOpenFiles = 200

// Options tunes join execution. The zero value is usable; DefaultOptions
// fills in the defaults explicitly.
type Options struct {
	// Resource limits
	MaxOpenFiles    int   // Upper bound on simultaneously open spill files; at least 2. If 0, uses DefaultMaxOpenFiles.
	MaxInMemoryRows int64 // Hash rows held in memory before partitions spill. If 0, unbounded.
	MaxBlockRows    int   // Hash rows per block of a block hash join. If 0, a single block.

	// Spill files
	TempDir     string      // Parent of the per-join spill directory. If empty, os.TempDir().
	Compression Compression // Spill file codec. If empty, Snappy.

	// Row offsets
	ExtractRowOffsets bool // Inputs carry a RowOffsetColumn; outputs get $LeftRowOffset$ and $RightRowOffset$.

	// Diagnostics
	Logger  *zap.Logger         // Debug logging of spill activity. If nil, a no-op logger.
	Handler annotations.Handler // Receives join events. If nil, no events are recorded.
}

// DefaultOptions returns the options used by NewHybridHashJoin.
func DefaultOptions() Options {
	return Options{
		MaxOpenFiles: DefaultMaxOpenFiles,
		Compression:  Snappy,
		Logger:       zap.NewNop(),
	}
}

func (o Options) withDefaults() Options {
	if o.MaxOpenFiles == 0 {
		o.MaxOpenFiles = DefaultMaxOpenFiles
	}
	if o.Compression == "" {
		o.Compression = Snappy
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func (o Options) validate() error {
	switch {
	case o.MaxOpenFiles < 2:
		return invalidf("at least 2 open files are required, got %d", o.MaxOpenFiles)
	case o.MaxInMemoryRows < 0:
		return invalidf("negative in-memory row limit %d", o.MaxInMemoryRows)
	case o.MaxBlockRows < 0:
		return invalidf("negative block size %d", o.MaxBlockRows)
	}
	if _, ok := codecs[o.Compression]; !ok {
		return invalidf("unknown spill compression %q", o.Compression)
	}
	return nil
}
