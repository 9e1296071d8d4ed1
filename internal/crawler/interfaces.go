package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Prober reports the HTTP status a listing page answers with.
type Prober interface {
	Probe(ctx context.Context, url string) (int, error)
}

// BlobStore is a create-only key/blob store. PutObject returns ErrObjectExists
// when the path is already occupied and leaves the stored bytes untouched.
type BlobStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RecordStore persists item records under their storage key.
type RecordStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Save(ctx context.Context, record ItemRecord, key string) (string, error)
}

// ItemProcessor turns an item reference into a fully assembled record.
type ItemProcessor interface {
	Process(ctx context.Context, ref string) (ItemRecord, error)
}

// Keyer maps an item reference to its storage key.
type Keyer interface {
	Key(ref string) (string, error)
}

// Publisher pushes capture notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests used for storage keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
