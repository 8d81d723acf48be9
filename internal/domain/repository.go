package domain

import (
	"context"
	"encoding/json"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// DocumentStore is a keyed JSON document store grouped into named collections.
// List returns documents most recently updated first.
type DocumentStore interface {
	Upsert(ctx context.Context, collection, key string, doc any) error
	Get(ctx context.Context, collection, key string, out any) error
	List(ctx context.Context, collection string, limit int) ([]json.RawMessage, error)
	DeleteAll(ctx context.Context, collection string) (int64, error)
}

// SearchProvider returns candidate offers for a free-text query
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]CandidateOffer, error)
}

// CatalogSource pages through raw marketplace listings (catalog ingest and title linking)
type CatalogSource interface {
	SearchPage(ctx context.Context, query string, page int) ([]Listing, error)
}

// WebSearcher runs a general web search used for merchant link resolution
type WebSearcher interface {
	WebSearch(ctx context.Context, query string) (*WebSearchResult, error)
}

// ImageHasher computes perceptual hashes; ok is false when the image cannot be fetched or decoded
type ImageHasher interface {
	Hash(ctx context.Context, url string) (hash uint64, ok bool)
}
