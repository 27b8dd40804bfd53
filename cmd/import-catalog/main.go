// import-catalog loads one catalog CSV: snapshot, diff, enqueue.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"catalog-sync/internal/adapters/shopify"
	"catalog-sync/internal/config"
	"catalog-sync/internal/importer"
	"catalog-sync/internal/infra/mysql"
	"catalog-sync/internal/logging"
	"catalog-sync/internal/mapper"
	"catalog-sync/internal/store"
)

func main() {
	var (
		file   = flag.String("file", "", "catalog CSV file to import")
		dryRun = flag.Bool("dry-run", false, "parse and preview without writing anything")
		limit  = flag.Int("limit", 20, "rows shown in dry-run preview")
	)
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if *file == "" {
		logger.Fatal("missing required -file flag")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Fatal("failed to open catalog file", zap.Error(err))
	}
	defer f.Close()

	if *dryRun {
		im := importer.New(nil, nil, nil, nil, cfg.Importer, logger)
		rows, rejected, err := im.Preview(f, *limit)
		if err != nil {
			logger.Fatal("preview failed", zap.Error(err))
		}
		for _, row := range rows {
			fmt.Printf("%-24s price=%.2f stock=%d\n", row.InternalSKU, row.Price, row.Stock)
		}
		for _, rej := range rejected {
			fmt.Printf("line %d rejected: %s\n", rej.Line, rej.Message)
		}
		return
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
	mappings := store.NewMappingStore(db)
	resolver := mapper.New(mappings, client, logger)

	im := importer.New(
		store.NewSnapshotStore(db),
		store.NewQueueStore(db),
		store.NewSyncLogStore(db),
		resolver,
		cfg.Importer,
		logger,
	)

	report, err := im.Import(context.Background(), *file, f)
	if err != nil {
		notifier.NotifyFailure("import-catalog", err)
		logger.Fatal("import failed", zap.Error(err))
	}

	summary := fmt.Sprintf("snapshot %d: %d rows, %d price / %d stock queued, %d unmapped",
		report.SnapshotID, report.TotalRows, report.PriceQueued, report.StockQueued, len(report.Unmapped))
	notifier.NotifySuccess("import-catalog", summary)
	logger.Info("import finished",
		zap.Int64("snapshot_id", report.SnapshotID),
		zap.Int("rows", report.TotalRows),
		zap.Int("price_queued", report.PriceQueued),
		zap.Int("stock_queued", report.StockQueued),
		zap.Strings("unmapped", report.Unmapped))
}
