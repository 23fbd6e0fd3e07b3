package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ibs-bot/internal/config"
	"ibs-bot/internal/exchange/bybit"
	"ibs-bot/internal/executor"
	"ibs-bot/internal/logger"
	"ibs-bot/internal/monitoring"
	"ibs-bot/internal/notifications"
	"ibs-bot/internal/store/sqlite"
)

func main() {
	envFile := flag.String("env", ".env", "Environment file path")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.RequireCredentials(); err != nil {
		log.Fatalf("%v", err)
	}

	fileLog, err := logger.NewLogger("execution", cfg.LogDir)
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

	client := bybit.NewClient(bybit.Config{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		Testnet:   cfg.Testnet,
		Demo:      cfg.Demo,
	})
	fileLog.Info("exchange environment: %s", client.Environment())

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, fileLog)
	}

	engine := executor.New(db.SignalStore(), client, executor.Config{
		Symbol:          cfg.Symbol,
		BufferFactor:    cfg.BufferFactor,
		MaxRequotes:     cfg.MaxRequotes,
		RequoteInterval: cfg.RequoteInterval,
		FillTolerance:   cfg.FillTolerance,
	}, fileLog)
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		engine.SetNotifier(notifications.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID))
	}

	fileLog.Info("execution engine started for %s", cfg.Symbol)
	if err := engine.Run(ctx, cfg.PollInterval); err != nil && ctx.Err() == nil {
		fileLog.Error("execution engine stopped: %v", err)
		os.Exit(1)
	}
	fileLog.Info("execution engine shut down")
}

func serveMetrics(addr string, fileLog *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	fileLog.Info("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		fileLog.Error("metrics server stopped: %v", err)
	}
}
