// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/stl-revenue-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "item_records"

// BlobStoreConfig controls the Postgres connection pool used for record rows.
type BlobStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// BlobStore keeps one row per object, keyed by path.
type BlobStore struct {
	pool  pool
	table string
}

// NewBlobStore connects to Postgres and creates the table if needed.
func NewBlobStore(ctx context.Context, cfg BlobStoreConfig) (*BlobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &BlobStore{pool: p, table: table}
	if err := store.Migrate(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewBlobStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewBlobStoreWithPool(p pool, table string) (*BlobStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &BlobStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Migrate creates the record table when it does not exist.
func (s *BlobStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	key          TEXT        PRIMARY KEY,
	content_type TEXT        NOT NULL DEFAULT '',
	body         BYTEA       NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *BlobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Exists reports whether a row with the given key is present.
func (s *BlobStore) Exists(ctx context.Context, path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, fmt.Errorf("path is required")
	}
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE key = $1)`, s.table)
	var exists bool
	if err := s.pool.QueryRow(ctx, query, path).Scan(&exists); err != nil {
		return false, fmt.Errorf("query record existence: %w", err)
	}
	return exists, nil
}

// PutObject inserts the object unless the key is taken and returns a postgres:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (key, content_type, body)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO NOTHING`, s.table)
	tag, err := s.pool.Exec(ctx, query, path, contentType, data)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("%s: %w", path, crawler.ErrObjectExists)
	}
	return fmt.Sprintf("postgres://%s/%s", s.table, path), nil
}
