package store

import (
	"context"
	"database/sql"
	"fmt"

	"catalog-sync/internal/domain/model"
)

type mysqlSyncLogStore struct {
	db *sql.DB
}

func NewSyncLogStore(db *sql.DB) SyncLogStore {
	return &mysqlSyncLogStore{db: db}
}

func (s *mysqlSyncLogStore) Append(ctx context.Context, internalReference, action, status, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_log (internal_reference, action, status, message)
		VALUES (?, ?, ?, ?)`,
		internalReference, action, status, nullString(message))
	if err != nil {
		return fmt.Errorf("sync log append %s: %w", internalReference, err)
	}
	return nil
}

func (s *mysqlSyncLogStore) History(ctx context.Context, internalReference string, limit int) ([]model.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, internal_reference, action, status, message, created_at
		FROM sync_log
		WHERE internal_reference = ?
		ORDER BY id DESC
		LIMIT ?`, internalReference, limit)
	if err != nil {
		return nil, fmt.Errorf("sync log history %s: %w", internalReference, err)
	}
	defer rows.Close()

	var entries []model.SyncLogEntry
	for rows.Next() {
		var (
			entry   model.SyncLogEntry
			message sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.InternalReference, &entry.Action, &entry.Status, &message, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("sync log scan: %w", err)
		}
		entry.Message = message.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
