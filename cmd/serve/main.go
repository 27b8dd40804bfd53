// serve exposes the catalog sync HTTP API: uploads, background jobs,
// snapshots, queue control, health and metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"catalog-sync/internal/adapters/shopify"
	"catalog-sync/internal/config"
	"catalog-sync/internal/importer"
	"catalog-sync/internal/infra/mysql"
	"catalog-sync/internal/mapper"
	"catalog-sync/internal/metrics"
	"catalog-sync/internal/store"
	"catalog-sync/internal/web"
	"catalog-sync/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	db, err := mysql.New(cfg.Mysql)
	if err != nil {
		logger.Fatal("failed to connect to mysql", zap.Error(err))
	}
	defer db.Close()

	if err := mysql.Migrate(cfg.Mysql); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	httpClient := &http.Client{Timeout: cfg.Shopify.Timeout}
	client := shopify.NewClient(cfg.Shopify, httpClient)

	queue := store.NewQueueStore(db)
	snapshots := store.NewSnapshotStore(db)
	mappings := store.NewMappingStore(db)
	syncLog := store.NewSyncLogStore(db)

	resolver := mapper.New(mappings, client, logger)
	im := importer.New(snapshots, queue, syncLog, resolver, cfg.Importer, logger)

	onProcessed, onFailed, onPlan := m.WorkerHooks()
	drainer := worker.New(queue, client, cfg.Worker, worker.PlanConfig(cfg), worker.MetricHooks{
		OnProcessed: onProcessed,
		OnFailed:    onFailed,
		OnPlan:      onPlan,
	}, logger)

	// Context for background jobs; cancelled on shutdown signal.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	jobs := web.NewJobManager(jobCtx)
	server := web.NewServer(im, drainer, queue, snapshots, syncLog, jobs, m, cfg.Importer.UploadDir, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Web.Port,
		Handler:      web.NewRouter(server, reg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
