package join

// ProgressMonitor reports how a hybrid hash join executed and exposes the
// knobs that force it onto the disk path. DesiredPartitionsOnDisk and
// AssumeMemoryLow are read at the start of a join; the counters are reset.
type ProgressMonitor struct {
	// Set before joining
	DesiredPartitionsOnDisk int  // Spill partitions until at least this many are on disk.
	AssumeMemoryLow         bool // Spill every partition.

	// Execution counters
	ProbeRowsProcessedInMemory int64
	ProbeRowsProcessedFromDisk int64
	HashBucketSizes            []int64 // Hash rows per partition of the last clause group
	ProbeBucketSizes           []int64 // Probe rows per partition of the last clause group
	PartitionsOnDisk           int     // Spilled partitions over all clause groups
	SpilledBytes               int64   // Bytes written to spill files
	PeakOpenFiles              int     // Most spill files open at once
}

func (m *ProgressMonitor) reset() {
	m.ProbeRowsProcessedInMemory = 0
	m.ProbeRowsProcessedFromDisk = 0
	m.HashBucketSizes = nil
	m.ProbeBucketSizes = nil
	m.PartitionsOnDisk = 0
	m.SpilledBytes = 0
	m.PeakOpenFiles = 0
}

func (m *ProgressMonitor) startGroup(partitions int) {
	m.HashBucketSizes = make([]int64, partitions)
	m.ProbeBucketSizes = make([]int64, partitions)
}
