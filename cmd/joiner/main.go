package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/wbrown/janus-join/relation"
	"github.com/wbrown/janus-join/relation/annotations"
	"github.com/wbrown/janus-join/relation/join"
	"github.com/wbrown/janus-join/relation/storage"
)

func main() {
	var jobPath string
	var help bool
	var verbose bool
	var debug bool

	job := DefaultJob()
	var leftOn, rightOn, leftInclude, rightInclude string

	flag.StringVar(&jobPath, "job", "", "TOML job file; other flags override it")
	flag.StringVar(&job.Left.Source, "left", "", "left table source")
	flag.StringVar(&job.Right.Source, "right", "", "right table source")
	flag.StringVar(&job.Left.Key, "left-key", "", "left column holding row keys (csv and parquet)")
	flag.StringVar(&job.Right.Key, "right-key", "", "right column holding row keys (csv and parquet)")
	flag.StringVar(&leftOn, "left-on", "", "comma separated left join columns")
	flag.StringVar(&rightOn, "right-on", "", "comma separated right join columns")
	flag.StringVar(&leftInclude, "left-include", "", "comma separated left output columns")
	flag.StringVar(&rightInclude, "right-include", "", "comma separated right output columns")
	flag.StringVar(&job.Mode, "mode", job.Mode, "join mode: inner, left-outer, right-outer, full-outer, left-anti, right-anti, full-anti")
	flag.StringVar(&job.Order, "order", job.Order, "output order: arbitrary, deterministic, left-right")
	flag.BoolVar(&job.Conjunctive, "conjunctive", job.Conjunctive, "all join clauses must match (false: any clause)")
	flag.BoolVar(&job.MergeColumns, "merge", job.MergeColumns, "merge join columns of both sides")
	flag.StringVar(&job.Comparison, "compare", job.Comparison, "cell comparison: strict, as-string, numeric-as-long")
	flag.StringVar(&job.RowKeys, "rowkeys", job.RowKeys, "output row keys: sequence, concat, keep")
	flag.StringVar(&job.Algorithm, "algorithm", job.Algorithm, "join algorithm: hybrid or block")
	flag.BoolVar(&job.Split, "split", false, "output matches and unmatched rows as separate tables")
	flag.StringVar(&job.Output, "out", "", "write CSV output to this file")
	flag.IntVar(&job.MaxOutputRows, "max-rows", 0, "rows to print (0: all)")
	flag.Int64Var(&job.Options.MaxInMemoryRows, "memory-rows", 0, "hash rows held in memory before spilling (0: unbounded)")
	flag.StringVar(&job.Options.TempDir, "tmp", "", "directory for spill files")
	flag.BoolVar(&verbose, "verbose", false, "verbose mode (show join annotations)")
	flag.BoolVar(&debug, "debug", false, "debug logging of spill files")
	flag.BoolVar(&help, "h", false, "show help")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Joins two tables with a hybrid hash join that spills to disk.\n\n")
		fmt.Fprintf(os.Stderr, "Table sources are CSV files, parquet files or badger:<path>#<table>.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -job orders.toml                        # Run a job file\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -job orders.toml -mode full-outer      # Override the join mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -left a.csv -left-key id -left-on x \\\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "     -right b.parquet -right-on y           # Join from flags\n")
		fmt.Fprintf(os.Stderr, "  %s -left 'badger:testdata/join_small.db#bars' -left-on symbol \\\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "     -right 'badger:testdata/join_small.db#symbols' -right-on symbol -verbose\n")
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	if jobPath != "" {
		loaded, err := LoadJob(jobPath)
		if err != nil {
			log.Fatal(err)
		}
		// flags given on the command line win over the job file
		flag.Visit(func(f *flag.Flag) {
			applyFlag(&loaded, &job, f.Name)
		})
		job = loaded
	}
	if leftOn != "" {
		job.Left.Join = splitList(leftOn)
	}
	if rightOn != "" {
		job.Right.Join = splitList(rightOn)
	}
	if leftInclude != "" {
		job.Left.Include = splitList(leftInclude)
	}
	if rightInclude != "" {
		job.Right.Include = splitList(rightInclude)
	}

	opts := job.JoinOptions()
	if verbose {
		formatter := annotations.NewOutputFormatter(os.Stderr)
		opts.Handler = annotations.Handler(formatter.Handle)
	}
	if debug {
		logger, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
		defer logger.Sync()
		opts.Logger = logger
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, job, opts); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "✗ %v\n", err)
		if errors.Is(err, join.ErrInvalidSettings) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// applyFlag copies the field behind a command line flag from flags to job.
func applyFlag(job, flags *Job, name string) {
	switch name {
	case "left":
		job.Left.Source = flags.Left.Source
	case "right":
		job.Right.Source = flags.Right.Source
	case "left-key":
		job.Left.Key = flags.Left.Key
	case "right-key":
		job.Right.Key = flags.Right.Key
	case "mode":
		job.Mode = flags.Mode
	case "order":
		job.Order = flags.Order
	case "conjunctive":
		job.Conjunctive = flags.Conjunctive
	case "merge":
		job.MergeColumns = flags.MergeColumns
	case "compare":
		job.Comparison = flags.Comparison
	case "rowkeys":
		job.RowKeys = flags.RowKeys
	case "algorithm":
		job.Algorithm = flags.Algorithm
	case "split":
		job.Split = flags.Split
	case "out":
		job.Output = flags.Output
	case "max-rows":
		job.MaxOutputRows = flags.MaxOutputRows
	case "memory-rows":
		job.Options.MaxInMemoryRows = flags.Options.MaxInMemoryRows
	case "tmp":
		job.Options.TempDir = flags.Options.TempDir
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// joiner is implemented by both join algorithms.
type joiner interface {
	JoinOutputCombined(ctx context.Context) (*relation.DataTable, error)
	JoinOutputSplit(ctx context.Context) (*join.SplitOutput, error)
}

func run(ctx context.Context, job Job, opts join.Options) error {
	src := newSources()
	defer src.Close()

	left, err := src.Open(job.Left)
	if err != nil {
		return fmt.Errorf("left table: %w", err)
	}
	right, err := src.Open(job.Right)
	if err != nil {
		return fmt.Errorf("right table: %w", err)
	}

	spec, err := job.Specification(left, right)
	if err != nil {
		return err
	}

	var j joiner
	var monitor *join.ProgressMonitor
	switch strings.ToLower(job.Algorithm) {
	case "hybrid", "":
		h := join.NewHybridHashJoin(spec, opts)
		monitor = h.Monitor()
		j = h
	case "block":
		j = join.NewBlockHashJoin(spec, opts)
	default:
		return fmt.Errorf("unknown join algorithm %q (use hybrid or block)", job.Algorithm)
	}

	start := time.Now()
	var tables []namedTable
	if job.Split {
		out, err := j.JoinOutputSplit(ctx)
		if err != nil {
			return err
		}
		tables = []namedTable{
			{"matches", out.Matches},
			{"left-unmatched", out.LeftUnmatched},
			{"right-unmatched", out.RightUnmatched},
		}
	} else {
		out, err := j.JoinOutputCombined(ctx)
		if err != nil {
			return err
		}
		tables = []namedTable{{"", out}}
	}
	elapsed := time.Since(start)

	if err := writeTables(job, tables); err != nil {
		return err
	}
	printSummary(spec.Mode(), tables, elapsed, monitor)
	return nil
}

type namedTable struct {
	name  string
	table *relation.DataTable
}

func writeTables(job Job, tables []namedTable) error {
	if job.Output == "" {
		tf := relation.NewTableFormatter()
		tf.MaxRows = job.MaxOutputRows
		for _, nt := range tables {
			if nt.name != "" {
				fmt.Printf("### %s\n\n", nt.name)
			}
			out, err := tf.FormatTable(nt.table)
			if err != nil {
				return err
			}
			fmt.Println(out)
			fmt.Println()
		}
		return nil
	}

	for _, nt := range tables {
		path := job.Output
		if nt.name != "" {
			ext := filepath.Ext(path)
			path = strings.TrimSuffix(path, ext) + "." + nt.name + ext
		}
		if err := writeCSVFile(path, nt.table); err != nil {
			return err
		}
	}
	return nil
}

func writeCSVFile(path string, t relation.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := storage.WriteCSV(f, t, "key"); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func printSummary(mode join.Mode, tables []namedTable, elapsed time.Duration, monitor *join.ProgressMonitor) {
	var rows int64
	for _, nt := range tables {
		rows += nt.table.Size()
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s %s join produced %s rows in %s\n",
		green("✓"), mode, humanize.Comma(rows), elapsed.Round(time.Microsecond))

	if monitor == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "  probe rows: %s in memory, %s from disk\n",
		humanize.Comma(monitor.ProbeRowsProcessedInMemory),
		humanize.Comma(monitor.ProbeRowsProcessedFromDisk))
	if monitor.PartitionsOnDisk > 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(os.Stderr, "  %s %d partitions (%s), at most %d files open\n",
			yellow("spilled"), monitor.PartitionsOnDisk,
			humanize.Bytes(uint64(monitor.SpilledBytes)), monitor.PeakOpenFiles)
	}
}
