package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wbrown/janus-join/relation"
	"github.com/wbrown/janus-join/relation/join"
	"github.com/wbrown/janus-join/relation/storage"
)

// Job describes one join run. It is read from a TOML file; flags override
// its fields.
type Job struct {
	Mode          string `toml:"mode"`
	Order         string `toml:"order"`
	Conjunctive   bool   `toml:"conjunctive"`
	MergeColumns  bool   `toml:"merge_columns"`
	Comparison    string `toml:"comparison"`
	RowKeys       string `toml:"row_keys"` // sequence, concat or keep
	Separator     string `toml:"separator"`
	Algorithm     string `toml:"algorithm"` // hybrid or block
	Split         bool   `toml:"split"`
	Output        string `toml:"output"` // CSV file; markdown on stdout if empty
	MaxOutputRows int    `toml:"max_output_rows"`

	Left    SideJob    `toml:"left"`
	Right   SideJob    `toml:"right"`
	Options OptionsJob `toml:"options"`
}

// SideJob binds one side of the join to a table source.
//
// Sources are CSV files (*.csv), parquet files (*.parquet) or badger tables
// written as badger:<path>#<table>.
type SideJob struct {
	Source  string   `toml:"source"`
	Key     string   `toml:"key"`
	Join    []string `toml:"join"`
	Include []string `toml:"include"`
}

// OptionsJob mirrors join.Options.
type OptionsJob struct {
	MaxOpenFiles      int    `toml:"max_open_files"`
	MaxInMemoryRows   int64  `toml:"max_in_memory_rows"`
	MaxBlockRows      int    `toml:"max_block_rows"`
	TempDir           string `toml:"temp_dir"`
	Compression       string `toml:"compression"`
	ExtractRowOffsets bool   `toml:"extract_row_offsets"`
}

// DefaultJob returns a conjunctive inner join with LEFT_RIGHT ordered output.
func DefaultJob() Job {
	return Job{
		Mode:        join.Inner.String(),
		Order:       join.LeftRight.String(),
		Conjunctive: true,
		Comparison:  relation.Strict.String(),
		RowKeys:     "concat",
		Separator:   "_",
		Algorithm:   "hybrid",
		Options: OptionsJob{
			MaxOpenFiles: join.DefaultMaxOpenFiles,
			Compression:  string(join.Snappy),
		},
	}
}

// LoadJob reads a job file over the defaults.
func LoadJob(path string) (Job, error) {
	job := DefaultJob()
	md, err := toml.DecodeFile(path, &job)
	if err != nil {
		return job, fmt.Errorf("failed to read job file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return job, fmt.Errorf("unknown keys in job file %s: %v", path, undecoded)
	}
	return job, nil
}

// JoinOptions converts the options section.
func (j Job) JoinOptions() join.Options {
	return join.Options{
		MaxOpenFiles:      j.Options.MaxOpenFiles,
		MaxInMemoryRows:   j.Options.MaxInMemoryRows,
		MaxBlockRows:      j.Options.MaxBlockRows,
		TempDir:           j.Options.TempDir,
		Compression:       join.Compression(strings.ToLower(j.Options.Compression)),
		ExtractRowOffsets: j.Options.ExtractRowOffsets,
	}
}

// Specification builds the join specification over the loaded tables.
func (j Job) Specification(left, right relation.Table) (*join.Specification, error) {
	mode, err := join.ParseMode(j.Mode)
	if err != nil {
		return nil, err
	}
	order, err := join.ParseOutputOrder(j.Order)
	if err != nil {
		return nil, err
	}
	comparison, err := relation.ParseComparisonMode(j.Comparison)
	if err != nil {
		return nil, err
	}

	leftSettings, err := join.NewTableSettings(join.Left, left, j.Left.Join, j.Left.Include, mode.RetainUnmatched(join.Left))
	if err != nil {
		return nil, err
	}
	rightSettings, err := join.NewTableSettings(join.Right, right, j.Right.Join, j.Right.Include, mode.RetainUnmatched(join.Right))
	if err != nil {
		return nil, err
	}

	b := join.NewBuilder(leftSettings, rightSettings).
		Conjunctive(j.Conjunctive).
		MergeJoinColumns(j.MergeColumns).
		OutputRowOrder(order).
		RetainMatched(mode.RetainMatched()).
		ComparisonMode(comparison)
	switch strings.ToLower(j.RowKeys) {
	case "sequence":
		b.RowKeyFactory(join.SequenceRowKeys(), true)
	case "concat":
		b.RowKeyFactory(join.ConcatRowKeys(j.Separator), true)
	case "keep":
		b.RowKeyFactory(join.KeepRowKeys(), false)
	default:
		return nil, fmt.Errorf("unknown row keys %q (use sequence, concat or keep)", j.RowKeys)
	}

	spec, err := b.Build()
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(j.RowKeys, "keep") {
		if err := join.KeepRowKeysApplicable(spec, j.Split); err != nil {
			return nil, err
		}
	}
	return spec, nil
}

// sources opens table sources and closes the stores they come from.
type sources struct {
	stores map[string]*storage.TableStore
}

func newSources() *sources {
	return &sources{stores: make(map[string]*storage.TableStore)}
}

// Open loads a CSV or parquet file into memory, or opens a stored badger
// table for streaming.
func (s *sources) Open(side SideJob) (relation.Table, error) {
	if rest, ok := strings.CutPrefix(side.Source, "badger:"); ok {
		path, name, found := strings.Cut(rest, "#")
		if !found || name == "" {
			return nil, fmt.Errorf("badger source %q needs a table name after #", side.Source)
		}
		store, ok := s.stores[path]
		if !ok {
			var err error
			store, err = storage.NewTableStore(path)
			if err != nil {
				return nil, err
			}
			s.stores[path] = store
		}
		t, err := store.Table(name)
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	switch strings.ToLower(filepath.Ext(side.Source)) {
	case ".csv":
		f, err := os.Open(side.Source)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		t, err := storage.LoadCSV(f, side.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", side.Source, err)
		}
		return t, nil
	case ".parquet":
		t, err := storage.LoadParquet(side.Source, side.Key)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "":
		return nil, fmt.Errorf("no table source given")
	default:
		return nil, fmt.Errorf("unsupported table source %q (use .csv, .parquet or badger:<path>#<table>)", side.Source)
	}
}

func (s *sources) Close() {
	for _, store := range s.stores {
		store.Close()
	}
}
