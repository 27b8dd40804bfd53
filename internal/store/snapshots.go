package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"catalog-sync/internal/domain/model"
)

type mysqlSnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) SnapshotStore {
	return &mysqlSnapshotStore{db: db}
}

func (s *mysqlSnapshotStore) CreateSnapshot(ctx context.Context, snap *model.CatalogSnapshot, rows []model.SnapshotRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot create begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		INSERT INTO catalog_snapshots (snapshot_date, row_count, source_file)
		VALUES (?, ?, ?)`,
		snap.SnapshotDate, len(rows), nullString(snap.SourceFile))
	if err != nil {
		return fmt.Errorf("snapshot insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_snapshot_rows (snapshot_id, internal_sku, price, stock)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("snapshot rows prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, id, row.InternalSKU, row.Price, row.Stock); err != nil {
			return fmt.Errorf("snapshot row insert sku %s: %w", row.InternalSKU, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot create commit: %w", err)
	}
	snap.ID = id
	snap.RowCount = len(rows)
	return nil
}

func (s *mysqlSnapshotStore) DeleteSnapshot(ctx context.Context, id int64) error {
	// Rows cascade via the snapshot_id foreign key.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM catalog_snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("snapshot delete %d: %w", id, err)
	}
	return nil
}

func (s *mysqlSnapshotStore) LatestSnapshot(ctx context.Context) (*model.CatalogSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, snapshot_date, row_count, source_file, created_at
		FROM catalog_snapshots
		ORDER BY id DESC
		LIMIT 1`)
	return scanSnapshot(row)
}

func (s *mysqlSnapshotStore) GetSnapshot(ctx context.Context, id int64) (*model.CatalogSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, snapshot_date, row_count, source_file, created_at
		FROM catalog_snapshots
		WHERE id = ?`, id)
	return scanSnapshot(row)
}

func (s *mysqlSnapshotStore) ListSnapshots(ctx context.Context, limit int) ([]model.CatalogSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, snapshot_date, row_count, source_file, created_at
		FROM catalog_snapshots
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("snapshot list: %w", err)
	}
	defer rows.Close()

	var snaps []model.CatalogSnapshot
	for rows.Next() {
		var (
			snap       model.CatalogSnapshot
			sourceFile sql.NullString
		)
		if err := rows.Scan(&snap.ID, &snap.SnapshotDate, &snap.RowCount, &sourceFile, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("snapshot list scan: %w", err)
		}
		snap.SourceFile = sourceFile.String
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (s *mysqlSnapshotStore) SnapshotRows(ctx context.Context, id int64) ([]model.SnapshotRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_id, internal_sku, price, stock
		FROM catalog_snapshot_rows
		WHERE snapshot_id = ?
		ORDER BY internal_sku ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("snapshot rows %d: %w", id, err)
	}
	defer rows.Close()

	var out []model.SnapshotRow
	for rows.Next() {
		var r model.SnapshotRow
		if err := rows.Scan(&r.SnapshotID, &r.InternalSKU, &r.Price, &r.Stock); err != nil {
			return nil, fmt.Errorf("snapshot rows scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSnapshot(row *sql.Row) (*model.CatalogSnapshot, error) {
	var (
		snap       model.CatalogSnapshot
		sourceFile sql.NullString
	)
	err := row.Scan(&snap.ID, &snap.SnapshotDate, &snap.RowCount, &sourceFile, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot scan: %w", err)
	}
	snap.SourceFile = sourceFile.String
	return &snap, nil
}
