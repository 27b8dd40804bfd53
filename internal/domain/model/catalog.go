package model

import "time"

// CatalogRow is one validated line of an imported catalog file.
// References with a slash ("A100/16") denote a size variant of the base
// reference before the slash.
type CatalogRow struct {
	Reference   string
	Description string
	ProductType string
	// Supplier cost as shipped in the file; PVP is derived via the margin.
	Cost  float64
	Stock int
}

// CatalogSnapshot records one accepted import. Immutable once created.
type CatalogSnapshot struct {
	ID           int64     `json:"id"`
	SnapshotDate time.Time `json:"snapshot_date"`
	RowCount     int       `json:"row_count"`
	SourceFile   string    `json:"source_file"`
	CreatedAt    time.Time `json:"created_at"`
}

// SnapshotRow is the per-SKU material a snapshot diff runs on.
type SnapshotRow struct {
	SnapshotID  int64   `json:"-"`
	InternalSKU string  `json:"sku"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

// SnapshotDiff is the comparison of two snapshots, keyed by SKU.
type SnapshotDiff struct {
	Added   []SnapshotRow `json:"added"`
	Removed []SnapshotRow `json:"removed"`
	Changed []RowChange   `json:"changed"`
}

type RowChange struct {
	InternalSKU string  `json:"sku"`
	OldPrice    float64 `json:"old_price"`
	NewPrice    float64 `json:"new_price"`
	OldStock    int     `json:"old_stock"`
	NewStock    int     `json:"new_stock"`
}
