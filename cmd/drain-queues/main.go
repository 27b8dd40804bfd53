// drain-queues pushes pending price and stock updates to Shopify.
// One-shot by default: runs until the queue is empty. With -watch it keeps
// polling on the configured interval.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"catalog-sync/internal/adapters/shopify"
	"catalog-sync/internal/config"
	"catalog-sync/internal/infra/mysql"
	"catalog-sync/internal/logging"
	"catalog-sync/internal/store"
	"catalog-sync/internal/worker"
)

func main() {
	var (
		watch = flag.Bool("watch", false, "keep polling the queue instead of exiting when empty")
		batch = flag.Int("batch", 0, "override the configured starting batch size")
	)
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if *batch > 0 {
		cfg.Worker.BatchSize = *batch
	}

	db, err := mysql.New(cfg.Mysql)
	if err != nil {
		logger.Fatal("failed to connect to mysql", zap.Error(err))
	}
	defer db.Close()

	if err := mysql.Migrate(cfg.Mysql); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	notifier := logging.NewNotifier(cfg.TelegramBot, logger)

	httpClient := &http.Client{Timeout: cfg.Shopify.Timeout}
	client := shopify.NewClient(cfg.Shopify, httpClient)
	queue := store.NewQueueStore(db)

	d := worker.New(queue, client, cfg.Worker, worker.PlanConfig(cfg), worker.MetricHooks{}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch {
		if err := d.Watch(ctx); err != nil && ctx.Err() == nil {
			notifier.NotifyFailure("drain-queues", err)
			logger.Fatal("watch failed", zap.Error(err))
		}
		return
	}

	if err := d.Run(ctx); err != nil {
		notifier.NotifyFailure("drain-queues", err)
		logger.Fatal("drain failed", zap.Error(err))
	}

	counts, err := queue.Counts(ctx)
	if err != nil {
		logger.Warn("could not read final queue counts", zap.Error(err))
		return
	}
	summary := fmt.Sprintf("queue drained, %d price / %d stock still pending",
		counts.PricesPending, counts.StockPending)
	notifier.NotifySuccess("drain-queues", summary)
	logger.Info("drain finished",
		zap.Int("prices_pending", counts.PricesPending),
		zap.Int("stock_pending", counts.StockPending))
}
