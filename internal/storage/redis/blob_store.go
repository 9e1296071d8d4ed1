// Package redis provides a BlobStore backed by Redis string keys.
package redis

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/stl-revenue-crawler/internal/crawler"
)

// Config controls the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

type client interface {
	Exists(ctx context.Context, keys ...string) *goredis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Close() error
}

// BlobStore writes each object to a Redis key with SETNX.
type BlobStore struct {
	client client
	db     int
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis.addr is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return &BlobStore{client: rdb, db: cfg.DB}, nil
}

// NewWithClient constructs a store from an existing client (primarily for testing).
func NewWithClient(c client, db int) (*BlobStore, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required")
	}
	return &BlobStore{client: c, db: db}, nil
}

// Exists reports whether the key is set.
func (s *BlobStore) Exists(ctx context.Context, path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, fmt.Errorf("path is required")
	}
	n, err := s.client.Exists(ctx, path).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// PutObject stores data under path unless the key is already set, and returns a
// redis:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, _ string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	created, err := s.client.SetNX(ctx, path, data, 0).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx: %w", err)
	}
	if !created {
		return "", fmt.Errorf("%s: %w", path, crawler.ErrObjectExists)
	}
	return fmt.Sprintf("redis://%d/%s", s.db, path), nil
}

// Close releases the client connection.
func (s *BlobStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}
