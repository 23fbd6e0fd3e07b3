package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ibs-bot/internal/config"
	"ibs-bot/internal/logger"
	"ibs-bot/internal/maintenance"
	"ibs-bot/internal/store/sqlite"
)

func main() {
	envFile := flag.String("env", ".env", "Environment file path")
	once := flag.Bool("once", false, "Run a single maintenance pass and exit")
	interval := flag.Duration("interval", 6*time.Hour, "Interval between maintenance passes")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fileLog, err := logger.NewLogger("maintenance", cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer fileLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	janitor := maintenance.New(db.SignalStore(), db.CandleStore(), cfg.LogDir, cfg.RetentionDays, fileLog)

	if *once {
		if err := janitor.RunOnce(ctx); err != nil {
			fileLog.Warning("maintenance pass failed: %v", err)
			os.Exit(1)
		}
		return
	}

	fileLog.Info("maintenance started, retention %d days, interval %s", cfg.RetentionDays, *interval)
	if err := janitor.Run(ctx, *interval); err != nil && ctx.Err() == nil {
		fileLog.Warning("maintenance stopped: %v", err)
		os.Exit(1)
	}
	fileLog.Info("maintenance shut down")
}
