package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ibs-bot/internal/config"
	"ibs-bot/internal/decision"
	"ibs-bot/internal/exchange/bybit"
	"ibs-bot/internal/executor"
	"ibs-bot/internal/logger"
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

	fileLog, err := logger.NewLogger("decision", cfg.LogDir)
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

	var notifier notifications.Notifier = notifications.Nop{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		notifier = notifications.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
	}

	engine := executor.New(db.SignalStore(), client, executor.Config{
		Symbol:          cfg.Symbol,
		BufferFactor:    cfg.BufferFactor,
		MaxRequotes:     cfg.MaxRequotes,
		RequoteInterval: cfg.RequoteInterval,
		FillTolerance:   cfg.FillTolerance,
	}, fileLog)
	engine.SetNotifier(notifier)

	trader := decision.New(db.SignalStore(), db.CandleStore(), client, engine, decision.Config{
		Symbol:           cfg.Symbol,
		EntryThreshold:   cfg.EntryThreshold,
		MaxLeverage:      cfg.MaxLeverage,
		LeverageExponent: cfg.LeverageExponent,
		HoldWindow:       cfg.WindowDuration,
		PollInterval:     cfg.PollInterval,
	}, fileLog)

	if err := trader.Reconcile(ctx); err != nil {
		fileLog.Error("startup reconciliation failed: %v", err)
		if alertErr := notifier.SendAlert("error", fmt.Sprintf("Decision process could not reconcile: %v", err)); alertErr != nil {
			fileLog.Warning("failed to send alert: %v", alertErr)
		}
		os.Exit(1)
	}

	fileLog.Info("decision process started for %s (threshold=%.2f, max leverage=%.1f)",
		cfg.Symbol, cfg.EntryThreshold, cfg.MaxLeverage)

	if err := trader.Run(ctx); err != nil && ctx.Err() == nil {
		fileLog.Error("decision process stopped: %v", err)
		if alertErr := notifier.SendAlert("error", fmt.Sprintf("Decision process stopped: %v", err)); alertErr != nil {
			fileLog.Warning("failed to send alert: %v", alertErr)
		}
		os.Exit(1)
	}
	fileLog.Info("decision process shut down")
}
