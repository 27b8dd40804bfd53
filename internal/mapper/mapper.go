// Package mapper resolves internal catalog SKUs to Shopify identifiers,
// caching hits in the mapping tables so repeat imports stay off the API.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"catalog-sync/internal/adapters/shopify"
	"catalog-sync/internal/domain/model"
	"catalog-sync/internal/store"
)

// ErrNotMapped means the SKU exists in the catalog but has no counterpart
// in the Shopify store.
var ErrNotMapped = errors.New("mapper: sku not mapped to a shopify variant")

// VariantLookup is the slice of the Shopify client the mapper needs.
type VariantLookup interface {
	VariantBySKU(ctx context.Context, sku string) (shopify.VariantIdentifiers, error)
}

type Mapper struct {
	mappings store.MappingStore
	lookup   VariantLookup
	logger   *zap.Logger
}

func New(mappings store.MappingStore, lookup VariantLookup, logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{mappings: mappings, lookup: lookup, logger: logger}
}

// Resolve returns the variant mapping for a SKU, consulting the mapping
// table first and falling back to a Shopify SKU search. Search hits are
// persisted so the next import resolves locally.
func (m *Mapper) Resolve(ctx context.Context, sku string) (*model.VariantMapping, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, errors.New("mapper: sku is required")
	}

	cached, err := m.mappings.GetVariantMapping(ctx, sku)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	ids, err := m.lookup.VariantBySKU(ctx, sku)
	if shopify.IsVariantNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotMapped, sku)
	}
	if err != nil {
		return nil, fmt.Errorf("mapper resolve %s: %w", sku, err)
	}

	mapping := &model.VariantMapping{
		InternalSKU:      sku,
		ShopifyVariantID: ids.VariantID,
		ShopifyProductID: ids.ProductID,
		InventoryItemID:  ids.InventoryItemID,
		ParentReference:  ParentReference(sku),
		Size:             SizeSuffix(sku),
	}
	if err := m.mappings.SaveVariantMapping(ctx, mapping); err != nil {
		return nil, err
	}

	if err := m.mappings.SaveProductMapping(ctx, &model.ProductMapping{
		InternalReference: mapping.ParentReference,
		ShopifyProductID:  ids.ProductID,
		Title:             ids.ProductTitle,
	}); err != nil {
		// The variant mapping is the one the worker needs; keep going.
		m.logger.Warn("product mapping save failed",
			zap.String("reference", mapping.ParentReference),
			zap.Error(err))
	}

	m.logger.Debug("sku resolved via shopify search",
		zap.String("sku", sku),
		zap.String("variant_id", ids.VariantID),
		zap.String("product_id", ids.ProductID))

	return mapping, nil
}

// ParentReference strips the size suffix: "A100/16" maps to "A100",
// a plain reference maps to itself.
func ParentReference(sku string) string {
	if idx := strings.Index(sku, "/"); idx > 0 {
		return sku[:idx]
	}
	return sku
}

// SizeSuffix returns the size part of a variant reference, or "" for a
// plain reference.
func SizeSuffix(sku string) string {
	if idx := strings.Index(sku, "/"); idx >= 0 && idx+1 < len(sku) {
		return sku[idx+1:]
	}
	return ""
}
