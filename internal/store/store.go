// Package store is the MySQL persistence layer: update queue, identifier
// mappings, catalog snapshots and the sync log.
package store

import (
	"context"
	"errors"

	"catalog-sync/internal/domain/model"
)

var ErrNotFound = errors.New("store: not found")

type QueueStore interface {
	Enqueue(ctx context.Context, items []model.QueueItem) error
	// ListPending returns up to limit pending items, oldest first.
	ListPending(ctx context.Context, limit int) ([]model.QueueItem, error)
	MarkDone(ctx context.Context, ids []int64, batchID string) error
	MarkError(ctx context.Context, id int64, batchID, message string) error
	// Requeue flips error items back to pending for another drain pass.
	Requeue(ctx context.Context, ids []int64) error
	Counts(ctx context.Context) (model.QueueCounts, error)
}

type MappingStore interface {
	GetVariantMapping(ctx context.Context, internalSKU string) (*model.VariantMapping, error)
	SaveVariantMapping(ctx context.Context, m *model.VariantMapping) error
	GetProductMapping(ctx context.Context, internalReference string) (*model.ProductMapping, error)
	SaveProductMapping(ctx context.Context, m *model.ProductMapping) error
}

type SnapshotStore interface {
	// CreateSnapshot inserts the snapshot and its rows in one transaction.
	CreateSnapshot(ctx context.Context, snap *model.CatalogSnapshot, rows []model.SnapshotRow) error
	// DeleteSnapshot removes a snapshot and its rows. Used to roll back an
	// import whose queue items could not be enqueued.
	DeleteSnapshot(ctx context.Context, id int64) error
	LatestSnapshot(ctx context.Context) (*model.CatalogSnapshot, error)
	GetSnapshot(ctx context.Context, id int64) (*model.CatalogSnapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]model.CatalogSnapshot, error)
	SnapshotRows(ctx context.Context, id int64) ([]model.SnapshotRow, error)
}

type SyncLogStore interface {
	Append(ctx context.Context, internalReference, action, status, message string) error
	History(ctx context.Context, internalReference string, limit int) ([]model.SyncLogEntry, error)
}
