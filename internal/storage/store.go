package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Kind groups secure-store items.
type Kind string

// Item kinds.
const (
	KindConfig      Kind = "config"
	KindCertificate Kind = "certificate"
	KindPrivateKey  Kind = "private_key"
)

func (k Kind) valid() bool {
	switch k {
	case KindConfig, KindCertificate, KindPrivateKey:
		return true
	}
	return false
}

// Store is the secure key/value store.
type Store struct {
	db *sql.DB
}

// New creates a store on an open, migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init verifies the store's schema is reachable. It is the storage-init
// step of device startup.
func (s *Store) Init(ctx context.Context) error {
	if s.db == nil {
		return statusErr("init", StatusNotInitialized, nil)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kcm_items").Scan(&n); err != nil {
		return statusErr("init", StatusNotInitialized, err)
	}
	return nil
}

// Put stores an item, replacing any existing value.
// Factory items survive FactoryReset.
func (s *Store) Put(ctx context.Context, kind Kind, name string, value []byte, factory bool) error {
	if !kind.valid() || name == "" {
		return statusErr("put", StatusInvalidParameter, fmt.Errorf("kind %q name %q", kind, name))
	}
	if value == nil {
		value = []byte{}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kcm_items (kind, name, value, factory, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(kind, name) DO UPDATE SET
		   value = excluded.value,
		   factory = excluded.factory,
		   updated_at = excluded.updated_at`,
		string(kind), name, value, boolToInt(factory),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return statusErr("put", StatusStorageError, err)
	}
	return nil
}

// Create stores an item only if it does not exist yet.
func (s *Store) Create(ctx context.Context, kind Kind, name string, value []byte, factory bool) error {
	if _, err := s.Get(ctx, kind, name); err == nil {
		return statusErr("create", StatusItemExists, fmt.Errorf("%s/%s", kind, name))
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.Put(ctx, kind, name, value, factory)
}

// Get returns an item's value.
func (s *Store) Get(ctx context.Context, kind Kind, name string) ([]byte, error) {
	if !kind.valid() || name == "" {
		return nil, statusErr("get", StatusInvalidParameter, fmt.Errorf("kind %q name %q", kind, name))
	}

	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kcm_items WHERE kind = ? AND name = ?",
		string(kind), name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, statusErr("get", StatusItemNotFound, fmt.Errorf("%s/%s", kind, name))
	}
	if err != nil {
		return nil, statusErr("get", StatusStorageError, err)
	}
	return value, nil
}

// GetString is Get for text items.
func (s *Store) GetString(ctx context.Context, kind Kind, name string) (string, error) {
	v, err := s.Get(ctx, kind, name)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Delete removes an item.
func (s *Store) Delete(ctx context.Context, kind Kind, name string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM kcm_items WHERE kind = ? AND name = ?",
		string(kind), name,
	)
	if err != nil {
		return statusErr("delete", StatusStorageError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows affected
		return statusErr("delete", StatusItemNotFound, fmt.Errorf("%s/%s", kind, name))
	}
	return nil
}

// Names lists item names of one kind, sorted.
func (s *Store) Names(ctx context.Context, kind Kind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM kcm_items WHERE kind = ? ORDER BY name", string(kind))
	if err != nil {
		return nil, statusErr("list", StatusStorageError, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, statusErr("list", StatusStorageError, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, statusErr("list", StatusStorageError, err)
	}
	return names, nil
}

// FactoryReset erases every non-factory item and the delivery log in one
// transaction.
func (s *Store) FactoryReset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return statusErr("factory_reset", StatusStorageError, err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM kcm_items WHERE factory = 0"); err != nil {
		return statusErr("factory_reset", StatusStorageError, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM delivery_log"); err != nil {
		return statusErr("factory_reset", StatusStorageError, err)
	}
	if err := tx.Commit(); err != nil {
		return statusErr("factory_reset", StatusStorageError, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
