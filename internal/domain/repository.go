package domain

import (
	"context"
	"time"
)

// CacheRepository defines the batched key-value operations a cache backend must provide.
// GetMany returns one slot per key in the same order; a nil slot is a miss.
type CacheRepository interface {
	GetMany(ctx context.Context, keys []string) ([][]byte, error)
	SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error
}

// ResultCache stores per-source scrape results keyed by (keyword, source)
type ResultCache interface {
	LookupMany(ctx context.Context, keyword string, sources []string) (hits []SourceResult, misses []string)
	StoreMany(ctx context.Context, keyword string, results []SourceResult)
}

// SourceScraper produces the products of one source for one keyword.
// Run never returns an error: failures are reported through SourceResult.Failed.
type SourceScraper interface {
	Name() string
	Info() SourceInfo
	Run(ctx context.Context, keyword string) SourceResult
}

// Browser hands out isolated pages backed by a shared rendering engine
type Browser interface {
	AcquirePage(ctx context.Context) (Page, error)
}

// Page is a single browser tab. Close must be called on every exit path.
type Page interface {
	Prepare(ctx context.Context, userAgent string, headers map[string]string) error
	Navigate(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
	// Click activates the first element matching selector and reports false when none exists
	Click(ctx context.Context, selector string) (bool, error)
	Scroll(ctx context.Context, distance int) error
	Close() error
}
