// Package maintenance prunes aged records and log files so the store and
// disk stay bounded on long-running deployments.
package maintenance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ibs-bot/internal/store"
)

// Logger is the subset of the file logger the janitor writes to.
type Logger interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
}

// Janitor removes signals, candles, and log files older than the retention
// window.
type Janitor struct {
	signals   store.SignalStore
	candles   store.CandleStore
	logDir    string
	retention time.Duration
	log       Logger
}

// New creates a janitor keeping the last retentionDays of data.
func New(signals store.SignalStore, candles store.CandleStore, logDir string, retentionDays int, log Logger) *Janitor {
	return &Janitor{
		signals:   signals,
		candles:   candles,
		logDir:    logDir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log,
	}
}

// RunOnce prunes everything older than the retention cutoff. Log file
// removal is best effort; store pruning failures are returned.
func (j *Janitor) RunOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.retention)

	signalsPruned, err := j.signals.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune signals: %w", err)
	}

	candlesPruned, err := j.candles.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune candles: %w", err)
	}

	logsPruned := j.pruneLogs(cutoff)

	j.log.Info("maintenance pass: %d signals, %d candles, %d log files pruned (cutoff %s)",
		signalsPruned, candlesPruned, logsPruned, cutoff.Format(time.RFC3339))
	return nil
}

// Run executes a maintenance pass at the given interval until ctx is done.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := j.RunOnce(ctx); err != nil {
			j.log.Warning("maintenance pass failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pruneLogs deletes .log files not modified since the cutoff.
func (j *Janitor) pruneLogs(cutoff time.Time) int {
	if j.logDir == "" {
		return 0
	}

	entries, err := os.ReadDir(j.logDir)
	if err != nil {
		j.log.Warning("failed to read log directory %s: %v", j.logDir, err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.logDir, entry.Name())
		if err := os.Remove(path); err != nil {
			j.log.Warning("failed to remove log file %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}
