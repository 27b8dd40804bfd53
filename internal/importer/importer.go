// Package importer turns catalog CSV files into snapshots and pending
// queue items. Only rows that changed against the previous snapshot are
// enqueued.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"catalog-sync/internal/config"
	"catalog-sync/internal/domain/model"
	"catalog-sync/internal/mapper"
	"catalog-sync/internal/store"
)

// Resolver is the slice of the mapper the importer needs.
type Resolver interface {
	Resolve(ctx context.Context, sku string) (*model.VariantMapping, error)
}

type Importer struct {
	snapshots store.SnapshotStore
	queue     store.QueueStore
	syncLog   store.SyncLogStore
	resolver  Resolver
	cfg       config.ImporterConfig
	logger    *zap.Logger
}

func New(snapshots store.SnapshotStore, queue store.QueueStore, syncLog store.SyncLogStore, resolver Resolver, cfg config.ImporterConfig, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		snapshots: snapshots,
		queue:     queue,
		syncLog:   syncLog,
		resolver:  resolver,
		cfg:       cfg,
		logger:    logger,
	}
}

// Report summarizes one import run.
type Report struct {
	SnapshotID  int64      `json:"snapshot_id"`
	TotalRows   int        `json:"total_rows"`
	Rejected    []RowError `json:"rejected,omitempty"`
	Added       int        `json:"added"`
	Removed     int        `json:"removed"`
	Changed     int        `json:"changed"`
	PriceQueued int        `json:"price_queued"`
	StockQueued int        `json:"stock_queued"`
	Unmapped    []string   `json:"unmapped,omitempty"`
}

// Import parses, snapshots and enqueues one catalog file. The first import
// (no previous snapshot) enqueues every row.
func (im *Importer) Import(ctx context.Context, sourceFile string, r io.Reader) (*Report, error) {
	rows, rejected, err := ParseCatalog(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("importer: no valid rows in file")
	}

	snapRows := im.toSnapshotRows(rows)

	var previous []model.SnapshotRow
	latest, err := im.snapshots.LatestSnapshot(ctx)
	switch {
	case err == nil:
		previous, err = im.snapshots.SnapshotRows(ctx, latest.ID)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, store.ErrNotFound):
		// First import: everything counts as added.
	default:
		return nil, err
	}

	diff := Diff(previous, snapRows)

	// Resolve mappings before committing the snapshot. If resolution
	// fails here, the previous snapshot stays latest and a retry of the
	// same file diffs against it again, so no change is lost.
	items, unmapped, err := im.buildQueueItems(ctx, diff)
	if err != nil {
		return nil, err
	}

	snap := &model.CatalogSnapshot{
		SnapshotDate: time.Now().UTC(),
		SourceFile:   sourceFile,
	}
	if err := im.snapshots.CreateSnapshot(ctx, snap, snapRows); err != nil {
		return nil, err
	}

	report := &Report{
		SnapshotID: snap.ID,
		TotalRows:  len(rows),
		Rejected:   rejected,
		Added:      len(diff.Added),
		Removed:    len(diff.Removed),
		Changed:    len(diff.Changed),
		Unmapped:   unmapped,
	}

	if err := im.queue.Enqueue(ctx, items); err != nil {
		// Roll the snapshot back so the retry sees the same diff.
		if derr := im.snapshots.DeleteSnapshot(ctx, snap.ID); derr != nil {
			im.logger.Error("snapshot rollback failed",
				zap.Int64("snapshot_id", snap.ID),
				zap.Error(derr))
		}
		return nil, err
	}
	for _, item := range items {
		switch item.Kind {
		case model.KindPrice:
			report.PriceQueued++
		case model.KindStock:
			report.StockQueued++
		}
	}

	im.logger.Info("catalog imported",
		zap.String("source_file", sourceFile),
		zap.Int64("snapshot_id", snap.ID),
		zap.Int("rows", report.TotalRows),
		zap.Int("rejected", len(rejected)),
		zap.Int("price_queued", report.PriceQueued),
		zap.Int("stock_queued", report.StockQueued),
		zap.Int("unmapped", len(unmapped)))

	return report, nil
}

// Preview parses the file without touching the database. Used by the
// dry-run flag and the upload preview endpoint.
func (im *Importer) Preview(r io.Reader, limit int) ([]model.SnapshotRow, []RowError, error) {
	rows, rejected, err := ParseCatalog(r)
	if err != nil {
		return nil, nil, err
	}
	snapRows := im.toSnapshotRows(rows)
	if limit > 0 && len(snapRows) > limit {
		snapRows = snapRows[:limit]
	}
	return snapRows, rejected, nil
}

func (im *Importer) toSnapshotRows(rows []model.CatalogRow) []model.SnapshotRow {
	out := make([]model.SnapshotRow, 0, len(rows))
	seen := make(map[string]int, len(rows))
	for _, row := range rows {
		price := SellingPrice(row.Cost, im.cfg.PriceMargin)
		if idx, ok := seen[row.Reference]; ok {
			// Duplicate reference in the file: last line wins.
			out[idx].Price = price
			out[idx].Stock = row.Stock
			continue
		}
		seen[row.Reference] = len(out)
		out = append(out, model.SnapshotRow{
			InternalSKU: row.Reference,
			Price:       price,
			Stock:       row.Stock,
		})
	}
	return out
}

func (im *Importer) buildQueueItems(ctx context.Context, diff model.SnapshotDiff) ([]model.QueueItem, []string, error) {
	type change struct {
		sku        string
		price      float64
		stock      int
		priceMoved bool
		stockMoved bool
	}

	changes := make([]change, 0, len(diff.Added)+len(diff.Changed))
	for _, row := range diff.Added {
		changes = append(changes, change{sku: row.InternalSKU, price: row.Price, stock: row.Stock, priceMoved: true, stockMoved: true})
	}
	for _, c := range diff.Changed {
		changes = append(changes, change{
			sku:        c.InternalSKU,
			price:      c.NewPrice,
			stock:      c.NewStock,
			priceMoved: c.OldPrice != c.NewPrice,
			stockMoved: c.OldStock != c.NewStock,
		})
	}

	var (
		items    []model.QueueItem
		unmapped []string
	)
	for _, c := range changes {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		mapping, err := im.resolver.Resolve(ctx, c.sku)
		if errors.Is(err, mapper.ErrNotMapped) {
			unmapped = append(unmapped, c.sku)
			im.appendSyncLog(ctx, c.sku, "resolve", "skipped", "no shopify variant for sku")
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("importer resolve %s: %w", c.sku, err)
		}

		if c.priceMoved {
			items = append(items, model.QueueItem{
				Kind:             model.KindPrice,
				InternalSKU:      c.sku,
				ShopifyProductID: mapping.ShopifyProductID,
				ShopifyVariantID: mapping.ShopifyVariantID,
				Payload:          model.QueuePayload{NewPrice: c.price},
			})
		}
		if c.stockMoved {
			items = append(items, model.QueueItem{
				Kind:             model.KindStock,
				InternalSKU:      c.sku,
				ShopifyProductID: mapping.ShopifyProductID,
				ShopifyVariantID: mapping.ShopifyVariantID,
				InventoryItemID:  mapping.InventoryItemID,
				Payload:          model.QueuePayload{NewStock: c.stock},
			})
		}
	}
	return items, unmapped, nil
}

func (im *Importer) appendSyncLog(ctx context.Context, reference, action, status, message string) {
	if im.syncLog == nil {
		return
	}
	if err := im.syncLog.Append(ctx, reference, action, status, message); err != nil {
		im.logger.Warn("sync log append failed", zap.String("reference", reference), zap.Error(err))
	}
}

// Diff compares two snapshot row sets keyed by SKU. Output slices are
// sorted by SKU so the result is stable.
func Diff(old, current []model.SnapshotRow) model.SnapshotDiff {
	oldBySKU := make(map[string]model.SnapshotRow, len(old))
	for _, row := range old {
		oldBySKU[row.InternalSKU] = row
	}

	var diff model.SnapshotDiff
	currentSKUs := make(map[string]struct{}, len(current))
	for _, row := range current {
		currentSKUs[row.InternalSKU] = struct{}{}
		prev, ok := oldBySKU[row.InternalSKU]
		if !ok {
			diff.Added = append(diff.Added, row)
			continue
		}
		if prev.Price != row.Price || prev.Stock != row.Stock {
			diff.Changed = append(diff.Changed, model.RowChange{
				InternalSKU: row.InternalSKU,
				OldPrice:    prev.Price,
				NewPrice:    row.Price,
				OldStock:    prev.Stock,
				NewStock:    row.Stock,
			})
		}
	}
	for _, row := range old {
		if _, ok := currentSKUs[row.InternalSKU]; !ok {
			diff.Removed = append(diff.Removed, row)
		}
	}

	sort.Slice(diff.Added, func(i, j int) bool { return diff.Added[i].InternalSKU < diff.Added[j].InternalSKU })
	sort.Slice(diff.Removed, func(i, j int) bool { return diff.Removed[i].InternalSKU < diff.Removed[j].InternalSKU })
	sort.Slice(diff.Changed, func(i, j int) bool { return diff.Changed[i].InternalSKU < diff.Changed[j].InternalSKU })
	return diff
}

// SellingPrice derives the PVP from a supplier cost, rounded to cents.
func SellingPrice(cost, margin float64) float64 {
	if margin <= 0 {
		margin = 1
	}
	return math.Round(cost*margin*100) / 100
}
