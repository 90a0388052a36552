package domain

import (
	"context"
	"time"
)

type PageFetcher interface {
	FetchPage(ctx context.Context, sourceURL string, page int) (Page, error)
}

type Extractor interface {
	Extract(content []byte) (Extraction, error)
}

// ReviewStore is the per-target append-only store.
type ReviewStore interface {
	// Load rebuilds the identity index from whatever was persisted before.
	// A missing store is an empty index, not an error.
	Load(ctx context.Context, key string) (*IdentityIndex, int, error)
	// Append persists one review; it is durable once Append returns nil.
	Append(ctx context.Context, key string, r Review) error
	Location(key string) string
}

type ReviewReader interface {
	List(ctx context.Context, key string, limit int) (ReviewsPage, error)
}

type Reporter interface {
	Report(ev Event)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	// DelPrefix removes every entry whose key starts with prefix.
	DelPrefix(ctx context.Context, prefix string) error
}
