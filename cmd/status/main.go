package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"ibs-bot/internal/config"
	"ibs-bot/internal/reporting"
	"ibs-bot/internal/store/sqlite"
)

func main() {
	envFile := flag.String("env", ".env", "Environment file path")
	limit := flag.Int("limit", 20, "Number of recent rows to show")
	export := flag.String("export", "", "Export history to an .xlsx file at the given path")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	db, err := sqlite.Open(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	signals, err := db.SignalStore().RecentSignals(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to read signals: %v", err)
	}
	candles, err := db.CandleStore().RecentCandles(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to read candles: %v", err)
	}

	reporting.RenderSummary(os.Stdout, signals)
	fmt.Println()
	reporting.RenderSignals(os.Stdout, signals)
	fmt.Println()
	reporting.RenderCandles(os.Stdout, candles)

	if *export != "" {
		allSignals, err := db.SignalStore().RecentSignals(ctx, 0)
		if err != nil {
			log.Fatalf("Failed to read signal history: %v", err)
		}
		allCandles, err := db.CandleStore().RecentCandles(ctx, 0)
		if err != nil {
			log.Fatalf("Failed to read candle history: %v", err)
		}
		if err := reporting.NewExcelReporter().WriteHistoryXLSX(allSignals, allCandles, *export); err != nil {
			log.Fatalf("Failed to export history: %v", err)
		}
		fmt.Printf("\nHistory exported to %s\n", *export)
	}
}
