package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"catalog-sync/internal/domain/model"
)

type mysqlQueueStore struct {
	db *sql.DB
}

func NewQueueStore(db *sql.DB) QueueStore {
	return &mysqlQueueStore{db: db}
}

func (s *mysqlQueueStore) Enqueue(ctx context.Context, items []model.QueueItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("queue enqueue begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO update_queue
			(kind, internal_sku, shopify_product_id, shopify_variant_id, inventory_item_id, payload, status)
		VALUES (?, ?, ?, ?, ?, ?, 'pending')`)
	if err != nil {
		return fmt.Errorf("queue enqueue prepare: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if !item.Kind.IsValid() {
			return fmt.Errorf("queue enqueue: invalid kind %q for sku %s", item.Kind, item.InternalSKU)
		}
		payload, err := json.Marshal(item.Payload)
		if err != nil {
			return fmt.Errorf("queue enqueue payload: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			item.Kind, item.InternalSKU,
			nullString(item.ShopifyProductID), nullString(item.ShopifyVariantID), nullString(item.InventoryItemID),
			string(payload),
		)
		if err != nil {
			return fmt.Errorf("queue enqueue insert sku %s: %w", item.InternalSKU, err)
		}
	}

	return tx.Commit()
}

func (s *mysqlQueueStore) ListPending(ctx context.Context, limit int) ([]model.QueueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, internal_sku, shopify_product_id, shopify_variant_id, inventory_item_id,
		       payload, status, error_message, batch_id, created_at, processed_at
		FROM update_queue
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("queue list pending: %w", err)
	}
	defer rows.Close()
	return scanQueueItems(rows)
}

func (s *mysqlQueueStore) MarkDone(ctx context.Context, ids []int64, batchID string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		UPDATE update_queue
		SET status = 'done', error_message = NULL, batch_id = ?, processed_at = CURRENT_TIMESTAMP
		WHERE id IN (%s) AND status = 'pending'`, placeholders(len(ids)))
	args := make([]any, 0, len(ids)+1)
	args = append(args, batchID)
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("queue mark done: %w", err)
	}
	return nil
}

func (s *mysqlQueueStore) MarkError(ctx context.Context, id int64, batchID, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE update_queue
		SET status = 'error', error_message = ?, batch_id = ?, processed_at = CURRENT_TIMESTAMP
		WHERE id = ?`, message, batchID, id)
	if err != nil {
		return fmt.Errorf("queue mark error: %w", err)
	}
	return nil
}

func (s *mysqlQueueStore) Requeue(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		UPDATE update_queue
		SET status = 'pending', error_message = NULL, batch_id = NULL, processed_at = NULL
		WHERE id IN (%s) AND status = 'error'`, placeholders(len(ids)))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("queue requeue: %w", err)
	}
	return nil
}

func (s *mysqlQueueStore) Counts(ctx context.Context) (model.QueueCounts, error) {
	var counts model.QueueCounts
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM update_queue
		WHERE status = 'pending'
		GROUP BY kind`)
	if err != nil {
		return counts, fmt.Errorf("queue counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return counts, fmt.Errorf("queue counts scan: %w", err)
		}
		switch model.Kind(kind) {
		case model.KindPrice:
			counts.PricesPending = n
		case model.KindStock:
			counts.StockPending = n
		}
	}
	return counts, rows.Err()
}

func scanQueueItems(rows *sql.Rows) ([]model.QueueItem, error) {
	var items []model.QueueItem
	for rows.Next() {
		var (
			item                          model.QueueItem
			productID, variantID, invItem sql.NullString
			payload, errMessage, batchID  sql.NullString
			processedAt                   sql.NullTime
		)
		if err := rows.Scan(
			&item.ID, &item.Kind, &item.InternalSKU,
			&productID, &variantID, &invItem,
			&payload, &item.Status, &errMessage, &batchID,
			&item.CreatedAt, &processedAt,
		); err != nil {
			return nil, fmt.Errorf("queue scan: %w", err)
		}
		item.ShopifyProductID = productID.String
		item.ShopifyVariantID = variantID.String
		item.InventoryItemID = invItem.String
		item.ErrorMessage = errMessage.String
		item.BatchID = batchID.String
		if processedAt.Valid {
			t := processedAt.Time
			item.ProcessedAt = &t
		}
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &item.Payload); err != nil {
				return nil, fmt.Errorf("queue payload decode id %d: %w", item.ID, err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
