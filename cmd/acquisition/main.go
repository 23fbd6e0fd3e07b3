package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ibs-bot/internal/aggregator"
	"ibs-bot/internal/config"
	"ibs-bot/internal/feed"
	"ibs-bot/internal/logger"
	"ibs-bot/internal/monitoring"
	"ibs-bot/internal/store/sqlite"
	"ibs-bot/pkg/types"
)

func main() {
	envFile := flag.String("env", ".env", "Environment file path")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fileLog, err := logger.NewLogger("acquisition", cfg.LogDir)
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

	health := monitoring.NewHealthChecker()
	if cfg.MetricsAddr != "" {
		go serveObservability(cfg.MetricsAddr, health, fileLog)
	}

	agg := aggregator.New(db.CandleStore(), cfg.WindowDuration, fileLog)
	stream := feed.New(feed.DefaultConfig(cfg.StreamURL, cfg.Symbol), fileLog)

	fileLog.Info("acquisition started for %s, window %s", cfg.Symbol, cfg.WindowDuration)
	health.SetConnected(true)

	err = stream.Run(ctx, func(ctx context.Context, candle *types.Candle) error {
		monitoring.UpdatePrice(cfg.Symbol, candle.Close)
		health.RecordPrice(candle.Close)
		return agg.Ingest(ctx, candle)
	})
	if err != nil && ctx.Err() == nil {
		fileLog.Error("acquisition stopped: %v", err)
		os.Exit(1)
	}
	fileLog.Info("acquisition shut down")
}

func serveObservability(addr string, health *monitoring.HealthChecker, fileLog *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	mux.Handle("/health", health)
	fileLog.Info("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		fileLog.Error("metrics server stopped: %v", err)
	}
}
