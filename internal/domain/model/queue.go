package model

import "time"

// Kind selects which Shopify mutation drains a queue item.
type Kind string

const (
	KindPrice Kind = "price"
	KindStock Kind = "stock"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindPrice, KindStock:
		return true
	}
	return false
}

// Status tracks the lifecycle of a queue item.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// QueueItem is one pending price or stock update. Created on import or
// manual edit, mutated only by the drain worker, retained after completion
// for audit.
type QueueItem struct {
	ID               int64
	Kind             Kind
	InternalSKU      string
	ShopifyProductID string
	ShopifyVariantID string
	// Only set for stock items.
	InventoryItemID string
	Payload         QueuePayload
	Status          Status
	ErrorMessage    string
	BatchID         string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// QueuePayload carries the target value. Exactly one field is meaningful
// depending on the item kind.
type QueuePayload struct {
	NewPrice float64 `json:"new_price,omitempty"`
	NewStock int     `json:"new_stock,omitempty"`
}

// QueueCounts is the per-kind pending depth snapshot shown by the web API
// and exported as gauges.
type QueueCounts struct {
	PricesPending int `json:"prices_pending"`
	StockPending  int `json:"stock_pending"`
}
