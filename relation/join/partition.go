package join

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wbrown/janus-join/relation"
)

// partition holds the hash rows routed to it, in memory until spilled. A
// spilled partition owns one spill file per side.
type partition struct {
	index int

	rows []relation.Row
	keys *keyIndex

	spilled   bool
	files     [2]string
	writers   [2]*spillWriter
	spillRows [2]int64
}

// fileRole indexes the two spill files of a partition.
type fileRole int

const (
	hashFile fileRole = iota
	probeFile
)

func (r fileRole) String() string {
	if r == hashFile {
		return "hash"
	}
	return "probe"
}

// partitionSet is the partitioned hash side of one clause group.
type partitionSet struct {
	parts        []*partition
	dir          string
	group        int
	compression  Compression
	log          *zap.Logger
	monitor      *ProgressMonitor
	inMemoryRows int64
	openFiles    int
}

func newPartitionSet(n int, dir string, group int, opts Options, monitor *ProgressMonitor) *partitionSet {
	ps := &partitionSet{
		parts:       make([]*partition, n),
		dir:         dir,
		group:       group,
		compression: opts.Compression,
		log:         opts.Logger,
		monitor:     monitor,
	}
	for i := range ps.parts {
		ps.parts[i] = &partition{index: i, keys: newKeyIndex(0)}
	}
	return ps
}

// addHash routes a hash row to partition p.
func (ps *partitionSet) addHash(p int, row relation.Row, key joinKey) error {
	part := ps.parts[p]
	if part.spilled {
		return ps.write(part, hashFile, row)
	}
	part.keys.add(key, len(part.rows))
	part.rows = append(part.rows, row)
	ps.inMemoryRows++
	return nil
}

// addProbe appends a probe row to the spill file of partition p.
func (ps *partitionSet) addProbe(p int, row relation.Row) error {
	return ps.write(ps.parts[p], probeFile, row)
}

func (ps *partitionSet) write(part *partition, role fileRole, row relation.Row) error {
	w, err := ps.writer(part, role)
	if err != nil {
		return err
	}
	part.spillRows[role]++
	return w.write(row)
}

// writer returns the open spill file of a partition, creating it on first use.
func (ps *partitionSet) writer(part *partition, role fileRole) (*spillWriter, error) {
	if w := part.writers[role]; w != nil {
		return w, nil
	}
	path := filepath.Join(ps.dir, fmt.Sprintf("g%d-p%d-%s.spill", ps.group, part.index, role))
	w, err := createSpill(path, ps.compression)
	if err != nil {
		return nil, err
	}
	part.files[role] = path
	part.writers[role] = w
	ps.opened()
	return w, nil
}

func (ps *partitionSet) opened() {
	ps.openFiles++
	if ps.openFiles > ps.monitor.PeakOpenFiles {
		ps.monitor.PeakOpenFiles = ps.openFiles
	}
}

// lowestInMemory returns the lowest in-memory partition index, or -1.
func (ps *partitionSet) lowestInMemory() int {
	for _, part := range ps.parts {
		if !part.spilled {
			return part.index
		}
	}
	return -1
}

func (ps *partitionSet) spilledCount() int {
	n := 0
	for _, part := range ps.parts {
		if part.spilled {
			n++
		}
	}
	return n
}

// spill moves the rows of partition p to its hash spill file.
func (ps *partitionSet) spill(p int) error {
	part := ps.parts[p]
	part.spilled = true
	for _, row := range part.rows {
		if err := ps.write(part, hashFile, row); err != nil {
			return err
		}
	}
	// an empty partition still gets its file
	if _, err := ps.writer(part, hashFile); err != nil {
		return err
	}
	ps.inMemoryRows -= int64(len(part.rows))
	ps.monitor.PartitionsOnDisk++
	ps.log.Debug("spilled partition",
		zap.Int("group", ps.group),
		zap.Int("partition", p),
		zap.Int("rows", len(part.rows)),
		zap.String("path", part.files[hashFile]))
	part.rows = nil
	part.keys = nil
	return nil
}

// closeWriters closes the open spill files of one role.
func (ps *partitionSet) closeWriters(role fileRole) error {
	var first error
	for _, part := range ps.parts {
		w := part.writers[role]
		if w == nil {
			continue
		}
		part.writers[role] = nil
		ps.openFiles--
		n, err := w.close()
		ps.monitor.SpilledBytes += n
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// close releases every open spill file; the files are removed with the
// spill directory.
func (ps *partitionSet) close() {
	if err := ps.closeWriters(hashFile); err != nil {
		ps.log.Debug("closing hash spill files", zap.Error(err))
	}
	if err := ps.closeWriters(probeFile); err != nil {
		ps.log.Debug("closing probe spill files", zap.Error(err))
	}
}

// loadHashRows reads the hash rows of a spilled partition.
func (ps *partitionSet) loadHashRows(part *partition) ([]relation.Row, error) {
	r, err := openSpill(part.files[hashFile], ps.compression)
	if err != nil {
		return nil, err
	}
	ps.opened()
	defer func() {
		r.Close()
		ps.openFiles--
	}()

	rows := make([]relation.Row, 0, part.spillRows[hashFile])
	for r.Next() {
		rows = append(rows, r.Row())
	}
	return rows, r.Err()
}

// openProbeRows opens the probe spill file of a partition. A partition that
// never received probe rows yields none.
func (ps *partitionSet) openProbeRows(part *partition) (relation.RowIterator, error) {
	if part.files[probeFile] == "" {
		return relation.NewDataTable(nil, nil).Iterator(), nil
	}
	r, err := openSpill(part.files[probeFile], ps.compression)
	if err != nil {
		return nil, err
	}
	ps.opened()
	return &trackedReader{spillReader: r, ps: ps}, nil
}

// trackedReader releases its slot in the open file count on Close.
type trackedReader struct {
	*spillReader
	ps *partitionSet
}

func (t *trackedReader) Close() error {
	t.ps.openFiles--
	return t.spillReader.Close()
}

// remove deletes the spill files of a reconciled partition.
func (ps *partitionSet) remove(part *partition) {
	for _, path := range part.files {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil {
			ps.log.Debug("removing spill file", zap.String("path", path), zap.Error(err))
		}
	}
}
