package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"catalog-sync/internal/adapters/shopify"
	"catalog-sync/internal/config"
	"catalog-sync/internal/domain/model"
	"catalog-sync/internal/throttle"
)

type mockQueue struct {
	items []model.QueueItem
}

func (m *mockQueue) Enqueue(_ context.Context, items []model.QueueItem) error {
	for _, item := range items {
		item.ID = int64(len(m.items) + 1)
		item.Status = model.StatusPending
		m.items = append(m.items, item)
	}
	return nil
}

func (m *mockQueue) ListPending(_ context.Context, limit int) ([]model.QueueItem, error) {
	var out []model.QueueItem
	for _, item := range m.items {
		if item.Status != model.StatusPending {
			continue
		}
		out = append(out, item)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockQueue) MarkDone(_ context.Context, ids []int64, batchID string) error {
	for _, id := range ids {
		for i := range m.items {
			if m.items[i].ID == id && m.items[i].Status == model.StatusPending {
				m.items[i].Status = model.StatusDone
				m.items[i].BatchID = batchID
			}
		}
	}
	return nil
}

func (m *mockQueue) MarkError(_ context.Context, id int64, batchID, message string) error {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Status = model.StatusError
			m.items[i].BatchID = batchID
			m.items[i].ErrorMessage = message
		}
	}
	return nil
}

func (m *mockQueue) Requeue(_ context.Context, ids []int64) error {
	for _, id := range ids {
		for i := range m.items {
			if m.items[i].ID == id && m.items[i].Status == model.StatusError {
				m.items[i].Status = model.StatusPending
				m.items[i].ErrorMessage = ""
			}
		}
	}
	return nil
}

func (m *mockQueue) Counts(_ context.Context) (model.QueueCounts, error) {
	var c model.QueueCounts
	for _, item := range m.items {
		if item.Status != model.StatusPending {
			continue
		}
		switch item.Kind {
		case model.KindPrice:
			c.PricesPending++
		case model.KindStock:
			c.StockPending++
		}
	}
	return c, nil
}

func (m *mockQueue) byStatus(status model.Status) []model.QueueItem {
	var out []model.QueueItem
	for _, item := range m.items {
		if item.Status == status {
			out = append(out, item)
		}
	}
	return out
}

type priceCall struct {
	productID string
	updates   []shopify.PriceUpdate
}

type mockGateway struct {
	priceCalls []priceCall
	stockCalls [][]shopify.QuantityInput

	// Keyed by product id; applied to the matching price call.
	priceErrors map[string]map[int]string
	stockErrors map[int]string
	transport   error
	status      throttle.Status
}

func (m *mockGateway) UpdateVariantPrices(_ context.Context, productID string, updates []shopify.PriceUpdate) (shopify.BulkResult, error) {
	if m.transport != nil {
		return shopify.BulkResult{}, m.transport
	}
	m.priceCalls = append(m.priceCalls, priceCall{productID: productID, updates: updates})
	return shopify.BulkResult{ItemErrors: m.priceErrors[productID], Throttle: m.status}, nil
}

func (m *mockGateway) SetInventoryQuantities(_ context.Context, inputs []shopify.QuantityInput) (shopify.BulkResult, error) {
	if m.transport != nil {
		return shopify.BulkResult{}, m.transport
	}
	m.stockCalls = append(m.stockCalls, inputs)
	return shopify.BulkResult{ItemErrors: m.stockErrors, Throttle: m.status}, nil
}

func testConfigs() (config.WorkerConfig, throttle.Config) {
	work := config.WorkerConfig{BatchSize: 50, GroupByProduct: true}
	plan := throttle.Config{
		FloorTokens:  100,
		MinBatchSize: 10,
		MaxBatchSize: 250,
		GrowthFactor: 1.5,
	}
	return work, plan
}

func newTestDrainer(queue *mockQueue, gateway *mockGateway) *Drainer {
	work, plan := testConfigs()
	return New(queue, gateway, work, plan, MetricHooks{}, nil)
}

func priceItem(id int64, sku, productID, variantID string, price float64) model.QueueItem {
	return model.QueueItem{
		ID: id, Kind: model.KindPrice, InternalSKU: sku, Status: model.StatusPending,
		ShopifyProductID: productID, ShopifyVariantID: variantID,
		Payload: model.QueuePayload{NewPrice: price},
	}
}

func stockItem(id int64, sku, invItem string, stock int) model.QueueItem {
	return model.QueueItem{
		ID: id, Kind: model.KindStock, InternalSKU: sku, Status: model.StatusPending,
		ShopifyProductID: "p1", ShopifyVariantID: "v" + sku, InventoryItemID: invItem,
		Payload: model.QueuePayload{NewStock: stock},
	}
}

func TestDrainGroupsPricesByProduct(t *testing.T) {
	queue := &mockQueue{items: []model.QueueItem{
		priceItem(1, "A/16", "p1", "v1", 20),
		priceItem(2, "B/10", "p2", "v3", 30),
		priceItem(3, "A/18", "p1", "v2", 20),
	}}
	gateway := &mockGateway{}
	d := newTestDrainer(queue, gateway)

	res, err := d.Drain(context.Background(), 50)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Done != 3 || res.Failed != 0 {
		t.Fatalf("done/failed = %d/%d, want 3/0", res.Done, res.Failed)
	}
	if len(gateway.priceCalls) != 2 {
		t.Fatalf("price calls = %d, want 2", len(gateway.priceCalls))
	}
	for _, call := range gateway.priceCalls {
		seen := map[string]bool{}
		for _, u := range call.updates {
			seen[u.VariantID] = true
		}
		switch call.productID {
		case "p1":
			if len(call.updates) != 2 || !seen["v1"] || !seen["v2"] {
				t.Errorf("p1 call = %+v, want v1+v2", call.updates)
			}
		case "p2":
			if len(call.updates) != 1 || !seen["v3"] {
				t.Errorf("p2 call = %+v, want v3", call.updates)
			}
		default:
			t.Errorf("unexpected product %s", call.productID)
		}
	}
}

func TestDrainUngroupedIssuesOneCallPerItem(t *testing.T) {
	queue := &mockQueue{items: []model.QueueItem{
		priceItem(1, "A/16", "p1", "v1", 20),
		priceItem(2, "A/18", "p1", "v2", 20),
	}}
	gateway := &mockGateway{}
	work, plan := testConfigs()
	work.GroupByProduct = false
	d := New(queue, gateway, work, plan, MetricHooks{}, nil)

	if _, err := d.Drain(context.Background(), 50); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(gateway.priceCalls) != 2 {
		t.Fatalf("price calls = %d, want 2", len(gateway.priceCalls))
	}
}

func TestDrainPartialUserErrors(t *testing.T) {
	queue := &mockQueue{items: []model.QueueItem{
		priceItem(1, "A/16", "p1", "v1", 20),
		priceItem(2, "A/18", "p1", "v2", 20),
		priceItem(3, "A/20", "p1", "v3", 20),
	}}
	gateway := &mockGateway{priceErrors: map[string]map[int]string{
		"p1": {1: "price is invalid"},
	}}
	d := newTestDrainer(queue, gateway)

	res, err := d.Drain(context.Background(), 50)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Done != 2 || res.Failed != 1 {
		t.Fatalf("done/failed = %d/%d, want 2/1", res.Done, res.Failed)
	}

	failed := queue.byStatus(model.StatusError)
	if len(failed) != 1 || failed[0].ID != 2 {
		t.Fatalf("failed items = %+v, want only id 2", failed)
	}
	if failed[0].ErrorMessage != "price is invalid" {
		t.Errorf("error message = %q", failed[0].ErrorMessage)
	}
	if len(queue.byStatus(model.StatusDone)) != 2 {
		t.Errorf("done items = %d, want 2", len(queue.byStatus(model.StatusDone)))
	}
}

func TestDrainTransportErrorLeavesItemsPending(t *testing.T) {
	queue := &mockQueue{items: []model.QueueItem{
		priceItem(1, "A/16", "p1", "v1", 20),
		priceItem(2, "A/18", "p1", "v2", 20),
	}}
	gateway := &mockGateway{transport: errors.New("502 from shopify")}
	d := newTestDrainer(queue, gateway)

	_, err := d.Drain(context.Background(), 50)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if pending := queue.byStatus(model.StatusPending); len(pending) != 2 {
		t.Fatalf("pending = %d, want 2 (batch aborted)", len(pending))
	}
}

func TestDrainStocksBatchedIntoOneCall(t *testing.T) {
	queue := &mockQueue{items: []model.QueueItem{
		stockItem(1, "A", "i1", 5),
		stockItem(2, "B", "i2", 0),
		stockItem(3, "C", "i3", 9),
	}}
	gateway := &mockGateway{}
	d := newTestDrainer(queue, gateway)

	res, err := d.Drain(context.Background(), 50)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(gateway.stockCalls) != 1 || len(gateway.stockCalls[0]) != 3 {
		t.Fatalf("stock calls = %+v, want one call with 3 inputs", gateway.stockCalls)
	}
	if res.Done != 3 {
		t.Errorf("done = %d, want 3", res.Done)
	}
}

func TestDrainFailsUnmappedItems(t *testing.T) {
	unmappedPrice := priceItem(1, "A", "", "", 20)
	unmappedStock := stockItem(2, "B", "", 5)
	queue := &mockQueue{items: []model.QueueItem{unmappedPrice, unmappedStock}}
	gateway := &mockGateway{}
	d := newTestDrainer(queue, gateway)

	res, err := d.Drain(context.Background(), 50)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Failed != 2 || res.Done != 0 {
		t.Fatalf("done/failed = %d/%d, want 0/2", res.Done, res.Failed)
	}
	if len(gateway.priceCalls)+len(gateway.stockCalls) != 0 {
		t.Error("unmapped items must not reach the API")
	}
}

func TestRunDrainsUntilEmptyWithoutReprocessing(t *testing.T) {
	queue := &mockQueue{items: []model.QueueItem{
		priceItem(1, "A/16", "p1", "v1", 20),
		priceItem(2, "B/10", "p2", "v2", 30),
		priceItem(3, "C/12", "p3", "v3", 40),
	}}
	gateway := &mockGateway{}
	work, plan := testConfigs()
	work.BatchSize = 1
	d := New(queue, gateway, work, plan, MetricHooks{}, nil)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pending := queue.byStatus(model.StatusPending); len(pending) != 0 {
		t.Fatalf("pending = %d, want 0", len(pending))
	}

	// Each item was sent exactly once.
	sent := map[string]int{}
	for _, call := range gateway.priceCalls {
		for _, u := range call.updates {
			sent[u.VariantID]++
		}
	}
	for v, n := range sent {
		if n != 1 {
			t.Errorf("variant %s sent %d times, want 1", v, n)
		}
	}
	if len(sent) != 3 {
		t.Errorf("variants sent = %d, want 3", len(sent))
	}
}

func TestDrainBatchIDStampedOnProcessedItems(t *testing.T) {
	queue := &mockQueue{items: []model.QueueItem{
		priceItem(1, "A/16", "p1", "v1", 20),
	}}
	d := newTestDrainer(queue, &mockGateway{})

	res, err := d.Drain(context.Background(), 50)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.BatchID == "" {
		t.Fatal("empty batch id")
	}
	done := queue.byStatus(model.StatusDone)
	if len(done) != 1 || done[0].BatchID != res.BatchID {
		t.Fatalf("done = %+v, want batch id %s", done, res.BatchID)
	}
}

func TestRunRetriesFailedPassesUpToLimit(t *testing.T) {
	queue := &mockQueue{items: []model.QueueItem{
		priceItem(1, "A/16", "p1", "v1", 20),
	}}
	gateway := &mockGateway{transport: errors.New("boom")}
	work, plan := testConfigs()
	work.MaxRetries = 1
	d := New(queue, gateway, work, plan, MetricHooks{}, nil)

	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if pending := queue.byStatus(model.StatusPending); len(pending) != 1 {
		t.Fatalf("pending = %d, want 1 (items untouched)", len(pending))
	}
}

// gateGateway blocks the first mutation until released, keeping a Run
// loop mid-pass for as long as the test needs.
type gateGateway struct {
	started chan struct{}
	release chan struct{}
	calls   int
}

func (g *gateGateway) UpdateVariantPrices(_ context.Context, _ string, _ []shopify.PriceUpdate) (shopify.BulkResult, error) {
	g.calls++
	if g.calls == 1 {
		close(g.started)
	}
	<-g.release
	return shopify.BulkResult{}, nil
}

func (g *gateGateway) SetInventoryQuantities(_ context.Context, _ []shopify.QuantityInput) (shopify.BulkResult, error) {
	return shopify.BulkResult{}, nil
}

func TestRunRejectsConcurrentInvocation(t *testing.T) {
	queue := &mockQueue{items: []model.QueueItem{
		priceItem(1, "A/16", "p1", "v1", 20),
	}}
	gateway := &gateGateway{started: make(chan struct{}), release: make(chan struct{})}
	work, plan := testConfigs()
	d := New(queue, gateway, work, plan, MetricHooks{}, nil)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()
	<-gateway.started

	if !d.Running() {
		t.Error("Running() = false during an active pass")
	}
	if err := d.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run = %v, want ErrAlreadyRunning", err)
	}

	close(gateway.release)
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gateway.calls != 1 {
		t.Errorf("price mutations = %d, want exactly 1", gateway.calls)
	}
	if d.Running() {
		t.Error("Running() = true after Run returned")
	}
}

func TestPassRetryDelayGrowsExponentially(t *testing.T) {
	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
	}
	for i, w := range want {
		if got := passRetryDelay(i + 1); got != w {
			t.Errorf("passRetryDelay(%d) = %v, want %v", i+1, got, w)
		}
	}
	if got := passRetryDelay(10); got != 30*time.Second {
		t.Errorf("passRetryDelay(10) = %v, want capped at 30s", got)
	}
}

func TestDrainGrowsBatchWhenHealthy(t *testing.T) {
	queue := &mockQueue{items: []model.QueueItem{
		priceItem(1, "A/16", "p1", "v1", 20),
	}}
	gateway := &mockGateway{status: throttle.Status{
		CurrentlyAvailable: 1900,
		MaximumAvailable:   2000,
		RestoreRate:        100,
	}}
	d := newTestDrainer(queue, gateway)

	res, err := d.Drain(context.Background(), 50)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.NextBatch <= 50 {
		t.Errorf("next batch = %d, want growth beyond 50", res.NextBatch)
	}
}
