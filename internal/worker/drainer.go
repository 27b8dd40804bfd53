// Package worker drains the update queue against the Shopify Admin API,
// pacing itself on the cost telemetry every mutation returns.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"catalog-sync/internal/adapters/shopify"
	"catalog-sync/internal/config"
	"catalog-sync/internal/domain/model"
	"catalog-sync/internal/store"
	"catalog-sync/internal/throttle"
)

// ShopifyGateway is the slice of the Shopify client the drainer calls.
type ShopifyGateway interface {
	UpdateVariantPrices(ctx context.Context, productID string, updates []shopify.PriceUpdate) (shopify.BulkResult, error)
	SetInventoryQuantities(ctx context.Context, inputs []shopify.QuantityInput) (shopify.BulkResult, error)
}

// MetricHooks are optional observation callbacks. Nil hooks are skipped.
type MetricHooks struct {
	OnProcessed func(kind model.Kind, n int, latency time.Duration)
	OnFailed    func(kind model.Kind, n int)
	OnPlan      func(delay time.Duration, batchSize int)
}

// Result summarizes one drain pass.
type Result struct {
	BatchID   string
	Picked    int
	Done      int
	Failed    int
	NextBatch int
	Delay     time.Duration
}

// ErrAlreadyRunning is returned by Run when another Run is still draining.
var ErrAlreadyRunning = errors.New("worker: drain already running")

type Drainer struct {
	queue    store.QueueStore
	gateway  ShopifyGateway
	workCfg  config.WorkerConfig
	planCfg  throttle.Config
	hooks    MetricHooks
	logger   *zap.Logger
	running  atomic.Bool

	// Batch size the throttle planned for the next pass.
	nextBatch int
}

// PlanConfig assembles the throttle planner configuration from the loaded
// application config.
func PlanConfig(cfg *config.Config) throttle.Config {
	return throttle.Config{
		FloorTokens:  cfg.Throttle.FloorTokens,
		MinInterval:  cfg.Shopify.MinRequestInterval,
		MinBatchSize: cfg.Throttle.MinBatchSize,
		MaxBatchSize: cfg.Throttle.MaxBatchSize,
		GrowthFactor: cfg.Throttle.GrowthFactor,
	}
}

func New(queue store.QueueStore, gateway ShopifyGateway, workCfg config.WorkerConfig, planCfg throttle.Config, hooks MetricHooks, logger *zap.Logger) *Drainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Drainer{
		queue:     queue,
		gateway:   gateway,
		workCfg:   workCfg,
		planCfg:   planCfg,
		hooks:     hooks,
		logger:    logger,
		nextBatch: workCfg.BatchSize,
	}
}

// Drain processes at most batchSize pending items in one pass. A transport
// failure aborts the pass: unprocessed items keep status pending and the
// error is returned. Per-item user errors only flag the failing items.
func (d *Drainer) Drain(ctx context.Context, batchSize int) (Result, error) {
	if batchSize <= 0 {
		batchSize = d.workCfg.BatchSize
	}

	items, err := d.queue.ListPending(ctx, batchSize)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		BatchID:   uuid.NewString(),
		Picked:    len(items),
		NextBatch: batchSize,
	}
	if len(items) == 0 {
		return res, nil
	}

	d.logger.Info("drain pass started",
		zap.String("batch_id", res.BatchID),
		zap.Int("picked", len(items)))

	priceItems, stockItems := d.splitUsable(ctx, res.BatchID, &res, items)

	if err := d.drainPrices(ctx, &res, priceItems); err != nil {
		return res, err
	}
	if err := d.drainStock(ctx, &res, stockItems); err != nil {
		return res, err
	}

	d.logger.Info("drain pass finished",
		zap.String("batch_id", res.BatchID),
		zap.Int("done", res.Done),
		zap.Int("failed", res.Failed),
		zap.Int("next_batch", res.NextBatch),
		zap.Duration("delay", res.Delay))

	return res, nil
}

// Running reports whether a Run loop is currently draining.
func (d *Drainer) Running() bool {
	return d.running.Load()
}

// Run repeats Drain until the queue is empty or a pass makes no progress,
// honoring the planned delay between passes. A failing pass is retried up
// to MaxRetries times; items of an aborted pass stay pending. Only one Run
// may drain at a time: a second caller gets ErrAlreadyRunning so the same
// pending items are never mutated twice.
func (d *Drainer) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer d.running.Store(false)

	failures := 0
	for {
		res, err := d.Drain(ctx, d.nextBatch)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			failures++
			if failures > d.workCfg.MaxRetries {
				return err
			}
			d.logger.Warn("drain pass failed, retrying",
				zap.Int("attempt", failures),
				zap.Error(err))
			if werr := waitContext(ctx, passRetryDelay(failures)); werr != nil {
				return werr
			}
			continue
		}
		failures = 0
		if res.Picked == 0 {
			return nil
		}
		if res.Done == 0 && res.Failed == 0 {
			d.logger.Warn("drain made no progress, stopping", zap.String("batch_id", res.BatchID))
			return nil
		}
		d.nextBatch = res.NextBatch
		if err := waitContext(ctx, res.Delay); err != nil {
			return err
		}
	}
}

// Watch polls the queue on the configured interval, draining whenever
// items are pending. Blocks until the context is cancelled.
func (d *Drainer) Watch(ctx context.Context) error {
	interval := d.workCfg.WatchInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := d.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error("drain run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// splitUsable buckets items by kind and fails the ones missing the
// identifiers their mutation needs.
func (d *Drainer) splitUsable(ctx context.Context, batchID string, res *Result, items []model.QueueItem) (prices, stock []model.QueueItem) {
	for _, item := range items {
		switch item.Kind {
		case model.KindPrice:
			if item.ShopifyVariantID == "" || item.ShopifyProductID == "" {
				d.failItem(ctx, batchID, res, item, "missing shopify variant mapping")
				continue
			}
			prices = append(prices, item)
		case model.KindStock:
			if item.InventoryItemID == "" {
				d.failItem(ctx, batchID, res, item, "missing inventory item mapping")
				continue
			}
			stock = append(stock, item)
		default:
			d.failItem(ctx, batchID, res, item, fmt.Sprintf("unknown kind %q", item.Kind))
		}
	}
	return prices, stock
}

func (d *Drainer) drainPrices(ctx context.Context, res *Result, items []model.QueueItem) error {
	if len(items) == 0 {
		return nil
	}

	for _, group := range d.groupPrices(items) {
		updates := make([]shopify.PriceUpdate, len(group.items))
		for i, item := range group.items {
			updates[i] = shopify.PriceUpdate{
				VariantID: item.ShopifyVariantID,
				Price:     item.Payload.NewPrice,
			}
		}

		start := time.Now()
		bulk, err := d.gateway.UpdateVariantPrices(ctx, group.productID, updates)
		if err != nil {
			return fmt.Errorf("price batch product %s: %w", group.productID, err)
		}
		d.commit(ctx, res, model.KindPrice, group.items, bulk, time.Since(start))
		if err := d.pace(ctx, res, bulk.Throttle); err != nil {
			return err
		}
	}
	return nil
}

func (d *Drainer) drainStock(ctx context.Context, res *Result, items []model.QueueItem) error {
	if len(items) == 0 {
		return nil
	}

	inputs := make([]shopify.QuantityInput, len(items))
	for i, item := range items {
		inputs[i] = shopify.QuantityInput{
			InventoryItemID: item.InventoryItemID,
			Quantity:        item.Payload.NewStock,
		}
	}

	start := time.Now()
	bulk, err := d.gateway.SetInventoryQuantities(ctx, inputs)
	if err != nil {
		return fmt.Errorf("stock batch: %w", err)
	}
	d.commit(ctx, res, model.KindStock, items, bulk, time.Since(start))
	return d.pace(ctx, res, bulk.Throttle)
}

type priceGroup struct {
	productID string
	items     []model.QueueItem
}

// groupPrices builds the mutation batches. With grouping on, one batch per
// product in first-seen order; a batch never mixes two products. With
// grouping off, one single-item batch per queue row.
func (d *Drainer) groupPrices(items []model.QueueItem) []priceGroup {
	if !d.workCfg.GroupByProduct {
		groups := make([]priceGroup, len(items))
		for i, item := range items {
			groups[i] = priceGroup{productID: item.ShopifyProductID, items: []model.QueueItem{item}}
		}
		return groups
	}

	index := make(map[string]int)
	var groups []priceGroup
	for _, item := range items {
		i, ok := index[item.ShopifyProductID]
		if !ok {
			i = len(groups)
			index[item.ShopifyProductID] = i
			groups = append(groups, priceGroup{productID: item.ShopifyProductID})
		}
		groups[i].items = append(groups[i].items, item)
	}
	return groups
}

// commit writes the per-item outcome of one mutation back to the queue.
func (d *Drainer) commit(ctx context.Context, res *Result, kind model.Kind, items []model.QueueItem, bulk shopify.BulkResult, latency time.Duration) {
	var doneIDs []int64
	for i, item := range items {
		if message, failed := bulk.ItemErrors[i]; failed {
			d.failItem(ctx, res.BatchID, res, item, message)
			continue
		}
		doneIDs = append(doneIDs, item.ID)
	}

	if len(doneIDs) > 0 {
		if err := d.queue.MarkDone(ctx, doneIDs, res.BatchID); err != nil {
			d.logger.Error("mark done failed", zap.String("batch_id", res.BatchID), zap.Error(err))
		} else {
			res.Done += len(doneIDs)
			if d.hooks.OnProcessed != nil {
				d.hooks.OnProcessed(kind, len(doneIDs), latency)
			}
		}
	}
}

func (d *Drainer) failItem(ctx context.Context, batchID string, res *Result, item model.QueueItem, message string) {
	if err := d.queue.MarkError(ctx, item.ID, batchID, message); err != nil {
		d.logger.Error("mark error failed",
			zap.Int64("item_id", item.ID),
			zap.Error(err))
		return
	}
	res.Failed++
	if d.hooks.OnFailed != nil {
		d.hooks.OnFailed(item.Kind, 1)
	}
	d.logger.Warn("queue item failed",
		zap.Int64("item_id", item.ID),
		zap.String("sku", item.InternalSKU),
		zap.String("kind", string(item.Kind)),
		zap.String("error", message))
}

// pace feeds the captured throttle telemetry into the planner and sleeps
// the planned delay.
func (d *Drainer) pace(ctx context.Context, res *Result, status throttle.Status) error {
	delay, next := throttle.Plan(status, d.planCfg, res.NextBatch)
	res.Delay = delay
	res.NextBatch = next
	if d.hooks.OnPlan != nil {
		d.hooks.OnPlan(delay, next)
	}
	return waitContext(ctx, delay)
}

func passRetryDelay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	delay := 500 * time.Millisecond << (failures - 1)
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

func waitContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
