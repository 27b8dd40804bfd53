package model

import "time"

// ProductMapping links a base catalog reference to its Shopify product.
type ProductMapping struct {
	ID                int64
	InternalReference string
	ShopifyProductID  string
	ShopifyHandle     string
	Title             string
	FirstCreatedAt    time.Time
	LastUpdatedAt     time.Time
}

// VariantMapping links one sellable SKU to the Shopify identifiers the
// worker needs for mutations. InventoryItemID is required for stock
// updates only.
type VariantMapping struct {
	ID               int64
	InternalSKU      string
	ShopifyVariantID string
	ShopifyProductID string
	InventoryItemID  string
	ParentReference  string
	Size             string
	Price            float64
	CreatedAt        time.Time
	LastUpdatedAt    time.Time
}
