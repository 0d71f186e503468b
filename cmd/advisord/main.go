package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/huyndo/tpcn-advisor/internal/api"
	"github.com/huyndo/tpcn-advisor/internal/catalog"
	"github.com/huyndo/tpcn-advisor/internal/common"
	"github.com/huyndo/tpcn-advisor/internal/common/telemetry"
	"github.com/huyndo/tpcn-advisor/internal/retriever"
)

func main() {
	logger := common.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.Warn("advisord: .env file not loaded", "error", err)
	} else {
		logger.Info("advisord: environment loaded from .env")
	}

	addrDefault := ":8080"
	if env := strings.TrimSpace(os.Getenv("ADVISOR_ADDR")); env != "" {
		addrDefault = env
	}
	addr := flag.String("addr", addrDefault, "listen address")
	dataDir := flag.String("data", "", "data directory with products/combos/symptoms JSON")
	productsURL := flag.String("products-url", "", "remote products feed URL (overrides ADVISOR_PRODUCTS_URL)")
	flag.Parse()

	logger.Info("advisord: startup initiated", "addr", *addr)

	loaderCfg, err := catalog.LoadConfig()
	if err != nil {
		logger.Error("advisord: loader config failed", "error", err)
		fmt.Println("loader config error:", err)
		os.Exit(1)
	}
	loaderCfg = loaderCfg.Merge(catalog.Config{DataDir: *dataDir, ProductsURL: *productsURL})

	metrics := telemetry.New("advisord")
	loader := catalog.NewSourceLoader(loaderCfg, catalog.WithMetrics(metrics))
	engine := retriever.New(loader, retriever.WithMetrics(metrics))

	apiCfg := api.Config{
		AdminToken: strings.TrimSpace(os.Getenv("ADVISOR_ADMIN_TOKEN")),
		Metrics:    metrics,
	}
	server, err := api.NewServer(ctx, engine, &apiCfg)
	if err != nil {
		logger.Error("advisord: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("advisord: server listening", "addr", *addr, "health", "/health")
	fmt.Printf("Serving on %s\n", *addr)
	reachable := *addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("advisord: verify reachability", "suggestion", fmt.Sprintf("curl http://%s/health", reachable))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("advisord: server stopped", "error", err)
			fmt.Println("server stopped:", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		stop()
		logger.Info("advisord: shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("advisord: shutdown incomplete", "error", err)
			os.Exit(1)
		}
		logger.Info("advisord: shutdown complete")
	}
}
