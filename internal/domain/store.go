package domain

import (
	"context"
	"time"
)

// SnapshotStore persists finished snapshots. Insert is append-only;
// callers verify a write through GetByID before reporting success.
type SnapshotStore interface {
	Insert(ctx context.Context, snap Snapshot) error
	GetByID(ctx context.Context, id string) (Snapshot, error)
	Latest(ctx context.Context, address string) (Snapshot, error)
	ListRecent(ctx context.Context, address string, limit int) ([]Snapshot, error)
}

// CachedRate is a conversion rate held in the rate cache together with
// when it was observed. Rate is a decimal string so no precision is
// lost crossing the cache boundary.
type CachedRate struct {
	Rate       string
	ObservedAt time.Time
}

// RateCache caches pool conversion rates between live feed fetches.
// Get returns ErrNotFound when the pair is absent or expired.
type RateCache interface {
	Get(ctx context.Context, base, quote string) (CachedRate, error)
	Put(ctx context.Context, base, quote string, rate CachedRate) error
}

// BlobWriter archives raw snapshot documents to object storage.
type BlobWriter interface {
	Write(ctx context.Context, key string, body []byte, contentType string) error
}
