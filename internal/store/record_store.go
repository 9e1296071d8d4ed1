package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/stl-revenue-crawler/internal/crawler"
)

// DefaultContentType is used when Config.ContentType is empty.
const DefaultContentType = "application/json"

// Config controls where records land inside the blob store.
type Config struct {
	// Prefix is prepended to every key, e.g. "records". Empty keeps keys at the root.
	Prefix      string
	ContentType string
}

// RecordStore implements crawler.RecordStore.
type RecordStore struct {
	blobs       crawler.BlobStore
	prefix      string
	contentType string
	logger      *zap.Logger
}

var _ crawler.RecordStore = (*RecordStore)(nil)

// New constructs a RecordStore.
func New(blobs crawler.BlobStore, cfg Config, logger *zap.Logger) (*RecordStore, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	contentType := cfg.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}
	return &RecordStore{
		blobs:       blobs,
		prefix:      strings.Trim(cfg.Prefix, "/"),
		contentType: contentType,
		logger:      logger,
	}, nil
}

// Path returns the blob path a key is stored under.
func (s *RecordStore) Path(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Exists reports whether a record with the key has already been saved.
func (s *RecordStore) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("key is required")
	}
	ok, err := s.blobs.Exists(ctx, s.Path(key))
	if err != nil {
		return false, fmt.Errorf("check record %s: %w", key, err)
	}
	return ok, nil
}

// Save writes the record under key. A record that is already present is left
// untouched and its path is returned without error.
func (s *RecordStore) Save(ctx context.Context, record crawler.ItemRecord, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	data, err := Encode(record)
	if err != nil {
		return "", err
	}
	p := s.Path(key)
	uri, err := s.blobs.PutObject(ctx, p, s.contentType, bytes.NewReader(data))
	if errors.Is(err, crawler.ErrObjectExists) {
		s.logger.Warn("record already captured, keeping existing copy",
			zap.String("key", key),
			zap.String("url", record.ItemURL),
		)
		return p, nil
	}
	if err != nil {
		return "", fmt.Errorf("save record %s: %w", key, err)
	}
	s.logger.Debug("record saved", zap.String("key", key), zap.String("uri", uri))
	return uri, nil
}

// Encode renders a record as indented JSON. HTML characters and non-ASCII text
// are written verbatim and a nil tag list is written as [].
func Encode(record crawler.ItemRecord) ([]byte, error) {
	if record.Tags == nil {
		record.Tags = []string{}
	}
	record.RecordTime = record.RecordTime.UTC()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(record); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return buf.Bytes(), nil
}
