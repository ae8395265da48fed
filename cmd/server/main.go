package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"ecoprado/internal/platform/config"
	"ecoprado/internal/platform/httpserver"
	"ecoprado/internal/platform/logger"
	"ecoprado/internal/platform/metrics"
	dErrors "ecoprado/pkg/domain-errors"
)

// main wires configuration, storage, audit and the ledger engine, then serves
// the operational endpoints until the process is signalled.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	backend, err := openStorage(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer backend.close()

	auditPipeline, err := openAudit(ctx, cfg, log, reg, backend)
	if err != nil {
		return err
	}
	// Closed before the backend so buffered events reach a live sink.
	defer auditPipeline.close()

	eng, err := buildEngine(cfg, log, m, backend, auditPipeline)
	if err != nil {
		return err
	}

	if cfg.TokenAdmin != "" {
		err := bootstrap(ctx, eng, cfg)
		switch {
		case err == nil:
			log.Info("token initialized", "admin", cfg.TokenAdmin, "symbol", cfg.TokenSymbol)
		case dErrors.HasCode(err, dErrors.CodeConflict):
			log.Info("token already initialized", "admin", cfg.TokenAdmin)
		default:
			return err
		}
	}

	checks := slices.Concat(backend.checks, auditPipeline.checks)
	srv := httpserver.New(cfg.Addr, newRouter(reg, checks))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting ecoprado", "addr", cfg.Addr, "storage", cfg.Storage, "reward_mode", cfg.RewardMode)
		return httpserver.Run(gctx, srv, cfg.ShutdownTimeout)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
