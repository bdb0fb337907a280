// Package main provides the rule editor HTTP server. It serves stored rules,
// validates and saves rule trees and exposes the operator catalog.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowgraph/ruleeditor/internal/app/usecases"
	"github.com/flowgraph/ruleeditor/internal/infrastructure/config"
	"github.com/flowgraph/ruleeditor/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(os.Getenv("RULEEDITOR_CONFIG")); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := usecases.LoadCatalogFile(cfg.Catalog.File, logger)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	service := usecases.NewRuleService(st, catalog, usecases.WithLogger(logger), usecases.WithMetrics(m))
	app := newApp(service, m, cfg.Server.ReadOnly, logger)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = app.Shutdown()
	}()

	logger.Info("starting rule editor server",
		slog.String("addr", cfg.Server.Addr),
		slog.String("store", cfg.Store.Backend),
		slog.Int("operators", catalog.Len()),
		slog.Bool("read_only", cfg.Server.ReadOnly))
	return app.Listen(cfg.Server.Addr)
}
