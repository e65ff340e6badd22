package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wbrown/janus-join/relation"
)

// Names of the generated tables.
const (
	BarsTable    = "bars"
	SymbolsTable = "symbols"
)

// TestDataConfig specifies the synthetic join inputs to build: a table of
// price bars and a table of listed symbols, joined on their symbol columns.
type TestDataConfig struct {
	NumSymbols      int       // Symbols that have bars
	UnlistedSymbols int       // Extra symbols without bars (unmatched symbol rows)
	NumDays         int       // Number of days of data
	BarsPerDay      int       // Number of bars per day (1=daily, 24=hourly, 390=minute)
	UntaggedEvery   int       // Every n-th bar has no symbol (unmatched bar rows); 0 disables
	OutputPath      string    // Where to store the database
	StartDate       time.Time // Start date for data generation
}

// DefaultJoinConfig returns a small dataset.
// Size: 10 symbols × 30 days × 24 hours = 7,200 bars
func DefaultJoinConfig() TestDataConfig {
	return TestDataConfig{
		NumSymbols:      10,
		UnlistedSymbols: 2,
		NumDays:         30,
		BarsPerDay:      24,
		UntaggedEvery:   100,
		OutputPath:      "testdata/join_small.db",
		StartDate:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// MediumJoinConfig returns a medium-sized dataset.
// Size: 50 symbols × 30 days × 24 hours = 36,000 bars
func MediumJoinConfig() TestDataConfig {
	return TestDataConfig{
		NumSymbols:      50,
		UnlistedSymbols: 10,
		NumDays:         30,
		BarsPerDay:      24,
		UntaggedEvery:   100,
		OutputPath:      "testdata/join_medium.db",
		StartDate:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// LargeJoinConfig returns a dataset for spilling joins.
// Size: 500 symbols × 365 days × 390 minutes = 71,175,000 bars
func LargeJoinConfig() TestDataConfig {
	return TestDataConfig{
		NumSymbols:      500,
		UnlistedSymbols: 50,
		NumDays:         365,
		BarsPerDay:      390,
		UntaggedEvery:   1000,
		OutputPath:      "testdata/join_large.db",
		StartDate:       time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
	}
}

func symbolName(i int) string {
	return fmt.Sprintf("TICK%04d", i)
}

// GenerateJoinInputs creates the bars and symbols tables in memory.
//
// bars:    symbol, time, open, close (keys bar1, bar2, ...)
// symbols: symbol, sector, listed   (keys are the symbol names)
func GenerateJoinInputs(config TestDataConfig) (bars, symbols *relation.DataTable) {
	totalBars := config.NumSymbols * config.NumDays * config.BarsPerDay
	bars = relation.NewEmptyTable([]string{"symbol", "time", "open", "close"}, totalBars)

	barIdx := 0
	for symbolIdx := 0; symbolIdx < config.NumSymbols; symbolIdx++ {
		for day := 0; day < config.NumDays; day++ {
			for bar := 0; bar < config.BarsPerDay; bar++ {
				barIdx++

				var barTime time.Time
				if config.BarsPerDay == 1 {
					barTime = config.StartDate.AddDate(0, 0, day)
				} else {
					minutesPerBar := (24 * 60) / config.BarsPerDay
					barTime = config.StartDate.AddDate(0, 0, day).Add(time.Duration(bar*minutesPerBar) * time.Minute)
				}

				// simple random walk
				open := 100.0 + float64(symbolIdx)*10.0 + float64(day)*0.1 + float64(bar)*0.01
				var symbol relation.Value = symbolName(symbolIdx)
				if config.UntaggedEvery > 0 && barIdx%config.UntaggedEvery == 0 {
					symbol = nil
				}
				bars.Append(relation.NewRow(fmt.Sprintf("bar%d", barIdx), symbol, barTime, open, open+0.5))
			}
		}
	}

	sectors := []string{"energy", "finance", "health", "tech"}
	numSymbols := config.NumSymbols + config.UnlistedSymbols
	symbols = relation.NewEmptyTable([]string{"symbol", "sector", "listed"}, numSymbols)
	for i := 0; i < numSymbols; i++ {
		name := symbolName(i)
		symbols.Append(relation.NewRow(name, name, sectors[i%len(sectors)], i < config.NumSymbols))
	}
	return bars, symbols
}

// BuildTestDatabase creates a badger store holding the generated tables.
func BuildTestDatabase(config TestDataConfig) (*TableStore, error) {
	// Remove existing database
	if err := os.RemoveAll(config.OutputPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove existing db: %w", err)
	}

	dir := filepath.Dir(config.OutputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	store, err := NewTableStore(config.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	bars, symbols := GenerateJoinInputs(config)
	for name, table := range map[string]*relation.DataTable{BarsTable: bars, SymbolsTable: symbols} {
		if err := store.PutTable(name, table); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return store, nil
}

// OpenTestDatabase opens a pre-built test database
func OpenTestDatabase(path string) (*TableStore, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("test database not found: %s (run BuildTestDatabase first)", path)
	}

	store, err := NewTableStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}
	return store, nil
}

// TestDatabaseStats describes the tables of a store and its size on disk.
func TestDatabaseStats(store *TableStore) (string, error) {
	names, err := store.Tables()
	if err != nil {
		return "", err
	}

	s := "Database Statistics:\n"
	for _, name := range names {
		t, err := store.Table(name)
		if err != nil {
			return "", err
		}
		s += fmt.Sprintf("  %s: %s rows, columns %v\n", name, humanize.Comma(t.Size()), t.Columns())
	}

	lsm, vlog := store.db.Size()
	s += fmt.Sprintf("  Size on disk: %s\n", humanize.Bytes(uint64(lsm+vlog)))
	return s, nil
}
