package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MacroChain/internal/di"
	"MacroChain/pkg/config"
	applogger "MacroChain/pkg/logger"
	"MacroChain/pkg/util"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	since := flag.String("since", "", "re-extract documents published at or after this time (RFC3339, date or unix)")
	limit := flag.Int("limit", 1000, "maximum number of documents")
	flag.Parse()

	from := util.ParseTimeDefault(*since, time.Now().Add(-24*time.Hour))

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	bf, err := di.InitializeBackfill(cfg)
	if err != nil {
		log.Fatalf("backfill initialization failed: %v", err)
	}
	defer bf.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	stats, err := bf.Extractor.Backfill(ctx, from, *limit)
	bf.Logger.Info("backfill: done",
		applogger.Int64("processed", stats.Processed),
		applogger.Int64("stored", stats.Stored),
		applogger.Int64("negative", stats.Negative),
		applogger.Int64("skipped", stats.Skipped),
		applogger.Int64("failed", stats.Failed),
		applogger.Duration("took", time.Since(start)),
	)
	if err != nil {
		bf.Logger.Error("backfill: aborted", applogger.Error(err))
		bf.Close()
		os.Exit(1)
	}
}
