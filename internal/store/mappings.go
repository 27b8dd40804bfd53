package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"catalog-sync/internal/domain/model"
)

type mysqlMappingStore struct {
	db *sql.DB
}

func NewMappingStore(db *sql.DB) MappingStore {
	return &mysqlMappingStore{db: db}
}

func (s *mysqlMappingStore) GetVariantMapping(ctx context.Context, internalSKU string) (*model.VariantMapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, internal_sku, shopify_variant_id, shopify_product_id, inventory_item_id,
		       parent_reference, size, price, created_at, last_updated_at
		FROM variant_mappings
		WHERE internal_sku = ?`, internalSKU)

	var (
		m                  model.VariantMapping
		invItem, parentRef sql.NullString
		size               sql.NullString
		price              sql.NullFloat64
	)
	err := row.Scan(
		&m.ID, &m.InternalSKU, &m.ShopifyVariantID, &m.ShopifyProductID, &invItem,
		&parentRef, &size, &price, &m.CreatedAt, &m.LastUpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("variant mapping get %s: %w", internalSKU, err)
	}
	m.InventoryItemID = invItem.String
	m.ParentReference = parentRef.String
	m.Size = size.String
	m.Price = price.Float64
	return &m, nil
}

func (s *mysqlMappingStore) SaveVariantMapping(ctx context.Context, m *model.VariantMapping) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO variant_mappings
			(internal_sku, shopify_variant_id, shopify_product_id, inventory_item_id,
			 parent_reference, size, price)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			shopify_variant_id = VALUES(shopify_variant_id),
			shopify_product_id = VALUES(shopify_product_id),
			inventory_item_id  = VALUES(inventory_item_id),
			parent_reference   = VALUES(parent_reference),
			size               = VALUES(size),
			price              = VALUES(price)`,
		m.InternalSKU, m.ShopifyVariantID, m.ShopifyProductID, nullString(m.InventoryItemID),
		nullString(m.ParentReference), nullString(m.Size), m.Price,
	)
	if err != nil {
		return fmt.Errorf("variant mapping save %s: %w", m.InternalSKU, err)
	}
	return nil
}

func (s *mysqlMappingStore) GetProductMapping(ctx context.Context, internalReference string) (*model.ProductMapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, internal_reference, shopify_product_id, shopify_handle, title,
		       first_created_at, last_updated_at
		FROM product_mappings
		WHERE internal_reference = ?`, internalReference)

	var (
		m             model.ProductMapping
		handle, title sql.NullString
	)
	err := row.Scan(&m.ID, &m.InternalReference, &m.ShopifyProductID, &handle, &title,
		&m.FirstCreatedAt, &m.LastUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("product mapping get %s: %w", internalReference, err)
	}
	m.ShopifyHandle = handle.String
	m.Title = title.String
	return &m, nil
}

func (s *mysqlMappingStore) SaveProductMapping(ctx context.Context, m *model.ProductMapping) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO product_mappings (internal_reference, shopify_product_id, shopify_handle, title)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			shopify_product_id = VALUES(shopify_product_id),
			shopify_handle     = VALUES(shopify_handle),
			title              = VALUES(title)`,
		m.InternalReference, m.ShopifyProductID, nullString(m.ShopifyHandle), nullString(m.Title),
	)
	if err != nil {
		return fmt.Errorf("product mapping save %s: %w", m.InternalReference, err)
	}
	return nil
}
