package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/huyndo/tpcn-advisor/internal/common"
	"github.com/huyndo/tpcn-advisor/internal/common/telemetry"
	"github.com/huyndo/tpcn-advisor/internal/sync"
)

func main() {
	logger := common.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.Warn("syncprod: .env file not loaded", "error", err)
	}

	base := flag.String("base", "", "storefront base URL (overrides ADVISOR_SYNC_BASE_URL)")
	dataDir := flag.String("data", "", "data directory for products.json")
	statePath := flag.String("state", "", "sqlite state db path (none disables)")
	workers := flag.Int("workers", 0, "concurrent page fetches")
	ratePerSec := flag.Float64("rate", 0, "max page fetches per second")
	dryRun := flag.Bool("dry-run", false, "scrape and report without writing anything")
	flag.Parse()

	cfg, err := sync.LoadConfig()
	if err != nil {
		logger.Error("syncprod: config load failed", "error", err)
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	cfg = cfg.Merge(sync.Config{
		BaseURL:    *base,
		DataDir:    *dataDir,
		StatePath:  *statePath,
		Workers:    *workers,
		RatePerSec: *ratePerSec,
	})
	cfg.DryRun = *dryRun

	logger.Info("syncprod: starting", "base", cfg.BaseURL, "data", cfg.DataDir, "dry_run", cfg.DryRun)

	opts := []sync.Option{sync.WithMetrics(telemetry.New("syncprod"))}
	var state *sync.StateStore
	if path := cfg.ResolveStatePath(); path != "" && !cfg.DryRun {
		state, err = sync.OpenState(path)
		if err != nil {
			logger.Warn("syncprod: state db unavailable, continuing without audit trail", "path", path, "error", err)
		} else {
			opts = append(opts, sync.WithState(state))
		}
	}

	scraper := sync.NewScraper(cfg, opts...)
	report, err := scraper.Run(ctx)
	if state != nil {
		state.Close()
	}
	if err != nil {
		logger.Error("syncprod: run failed", "error", err)
		fmt.Println("sync error:", err)
		os.Exit(1)
	}

	logger.Info("syncprod: run complete",
		"urls", report.URLsFound,
		"parsed", report.PagesParsed,
		"failed", report.PagesFailed,
		"products", report.Products,
		"changed", report.Changed,
		"duration", report.Duration)
	fmt.Printf("sync complete: %d urls, %d parsed, %d failed, changed=%v\n",
		report.URLsFound, report.PagesParsed, report.PagesFailed, report.Changed)
	if report.Changed && !cfg.DryRun {
		fmt.Println("wrote", report.OutputPath)
	}
}
