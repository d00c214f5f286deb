package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Delivery log limits.
const (
	defaultDeliveryLimit = 50
	maxDeliveryLimit     = 200

	// maxDeliveryRows bounds the table on flash-backed storage.
	maxDeliveryRows = 1000
)

// createdAtLayout is fixed width so created_at sorts lexically.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DeliveryRecord is one delivery-status report.
type DeliveryRecord struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Status    string    `json:"status"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// DeliveryLog stores delivery-status reports, newest kept.
type DeliveryLog struct {
	db *sql.DB
}

// NewDeliveryLog creates a delivery log on an open, migrated database.
func NewDeliveryLog(db *sql.DB) *DeliveryLog {
	return &DeliveryLog{db: db}
}

// Append inserts a record. ID and CreatedAt are generated if empty.
// The oldest rows beyond the retention bound are pruned.
func (l *DeliveryLog) Append(ctx context.Context, rec *DeliveryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if _, err := l.db.ExecContext(ctx,
		`INSERT INTO delivery_log (id, path, status, kind, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Path, rec.Status, rec.Kind,
		rec.CreatedAt.UTC().Format(createdAtLayout),
	); err != nil {
		return statusErr("append_delivery", StatusStorageError, err)
	}

	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM delivery_log WHERE id NOT IN (
		   SELECT id FROM delivery_log ORDER BY created_at DESC, rowid DESC LIMIT ?
		 )`, maxDeliveryRows,
	); err != nil {
		return statusErr("prune_delivery", StatusStorageError, err)
	}
	return nil
}

// Recent returns up to limit records, most recent first.
// limit <= 0 means 50; the maximum is 200.
func (l *DeliveryLog) Recent(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	if limit <= 0 {
		limit = defaultDeliveryLimit
	}
	if limit > maxDeliveryLimit {
		limit = maxDeliveryLimit
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, path, status, kind, created_at FROM delivery_log
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, statusErr("list_delivery", StatusStorageError, err)
	}
	defer rows.Close()

	records := make([]DeliveryRecord, 0, limit)
	for rows.Next() {
		var rec DeliveryRecord
		var created string
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.Status, &rec.Kind, &created); err != nil {
			return nil, statusErr("list_delivery", StatusStorageError, err)
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, statusErr("list_delivery", StatusStorageError, fmt.Errorf("parsing created_at: %w", err))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, statusErr("list_delivery", StatusStorageError, err)
	}
	return records, nil
}
