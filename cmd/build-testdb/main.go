package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/wbrown/janus-join/relation/storage"
)

func main() {
	configType := flag.String("config", "default", "Config type: default, medium, or large")
	output := flag.String("out", "", "database path (overrides the config's path)")
	flag.Parse()

	var config storage.TestDataConfig
	switch *configType {
	case "default":
		config = storage.DefaultJoinConfig()
	case "medium":
		config = storage.MediumJoinConfig()
	case "large":
		config = storage.LargeJoinConfig()
	default:
		fmt.Fprintf(os.Stderr, "Unknown config type: %s (use 'default', 'medium', or 'large')\n", *configType)
		os.Exit(1)
	}
	if *output != "" {
		config.OutputPath = *output
	}

	totalBars := int64(config.NumSymbols * config.NumDays * config.BarsPerDay)
	fmt.Printf("Building test database: %s\n", config.OutputPath)
	fmt.Printf("  Symbols: %d (+%d unlisted)\n", config.NumSymbols, config.UnlistedSymbols)
	fmt.Printf("  Days: %d\n", config.NumDays)
	fmt.Printf("  Bars/day: %d\n", config.BarsPerDay)
	fmt.Printf("  Total bars: %s\n", humanize.Comma(totalBars))
	fmt.Println()

	db, err := storage.BuildTestDatabase(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	stats, err := storage.TestDatabaseStats(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get stats: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(stats)

	fmt.Println("\n✅ Done! Join the tables with:")
	fmt.Printf("   joiner -left 'badger:%s#%s' -left-on symbol -right 'badger:%s#%s' -right-on symbol -mode full-outer\n",
		config.OutputPath, storage.BarsTable, config.OutputPath, storage.SymbolsTable)
}
