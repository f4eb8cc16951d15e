package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"store-pos/internal/backend"
	"store-pos/internal/catalog"
	"store-pos/internal/config"
	"store-pos/internal/daysummary"
	"store-pos/internal/logging"
	"store-pos/internal/receipt"
	"store-pos/internal/sale"
	"store-pos/internal/search"
	"store-pos/internal/stockwatch"
	"store-pos/internal/terminal"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadTerminal()

	logger := logging.NewFile(cfg.LogMode, cfg.LogFile)
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.New(cfg.APIURL, cfg.RequestTimeout, logger.Named("backend"))

	index := catalog.NewIndex(client, logger.Named("catalog"))
	watcher := stockwatch.New(index, cfg.LowStockThreshold, stockwatch.WithLogger(logger.Named("stock")))
	if err := watcher.Start(cfg.StockCheckSpec); err != nil {
		logger.Error("stock watcher not started", zap.String("spec", cfg.StockCheckSpec), zap.Error(err))
	}
	defer func() { <-watcher.Stop().Done() }()

	day := daysummary.New(client, logger.Named("day"))

	var screen *terminal.Screen
	resolver := search.NewResolver(client,
		search.WithDebounce(cfg.SearchDebounce),
		search.WithTimeout(cfg.RequestTimeout),
		search.WithLogger(logger.Named("search")),
		search.OnUpdate(func(s search.Snapshot) {
			if screen != nil {
				screen.ShowCandidates(s)
			}
		}))

	session := sale.NewSession(client, day, resolver,
		sale.WithPrinter(receipt.NewPrinter(os.Stdout, cfg.Store)),
		sale.WithLogger(logger.Named("sale")))

	screen = terminal.NewScreen(session, day, os.Stdout,
		terminal.WithReports(client),
		terminal.WithStockAlerts(watcher),
		terminal.WithLogger(logger.Named("terminal")))

	logger.Info("terminal started", zap.String("api", cfg.APIURL))
	if err := screen.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		logger.Error("terminal stopped", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
