package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pricescout/backend/internal/domain"
	log "github.com/sirupsen/logrus"
)

// ResultCacheConfig holds TTL settings for cached source results
type ResultCacheConfig struct {
	TTL         time.Duration
	MaxLifetime time.Duration
}

// ResultCache stores per-source results on top of a batched CacheRepository.
// Backend failures never surface to callers: reads fail open and writes are dropped.
type ResultCache struct {
	backend     domain.CacheRepository
	ttl         time.Duration
	maxLifetime time.Duration
	now         func() time.Time
}

// NewResultCache creates a result cache over backend
func NewResultCache(backend domain.CacheRepository, config ResultCacheConfig) *ResultCache {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	maxLifetime := config.MaxLifetime
	if maxLifetime <= 0 {
		maxLifetime = time.Hour
	}
	if ttl > maxLifetime {
		ttl = maxLifetime
	}

	return &ResultCache{
		backend:     backend,
		ttl:         ttl,
		maxLifetime: maxLifetime,
		now:         time.Now,
	}
}

// Key builds the cache key for a (keyword, source) pair.
// Format: "scrape:{keyword}:source:{source}"
func Key(keyword, source string) string {
	return fmt.Sprintf("scrape:%s:source:%s", keyword, source)
}

// LookupMany splits sources into cached hits and misses using one batched read
func (c *ResultCache) LookupMany(ctx context.Context, keyword string, sources []string) ([]domain.SourceResult, []string) {
	if len(sources) == 0 {
		return nil, nil
	}

	keys := make([]string, len(sources))
	for i, source := range sources {
		keys[i] = Key(keyword, source)
	}

	values, err := c.backend.GetMany(ctx, keys)
	if err != nil || len(values) != len(keys) {
		log.WithFields(log.Fields{
			"keyword": keyword,
			"sources": len(sources),
		}).WithError(err).Warn("cache lookup failed, scraping all sources")
		return nil, append([]string(nil), sources...)
	}

	now := c.now()
	var hits []domain.SourceResult
	var misses []string
	for i, source := range sources {
		entry, ok := c.decode(values[i], now)
		if !ok {
			misses = append(misses, source)
			continue
		}
		hits = append(hits, domain.SourceResult{
			Source:   source,
			Products: entry.Products,
		})
	}

	return hits, misses
}

// StoreMany writes every successful result with the configured TTL in one batched write
func (c *ResultCache) StoreMany(ctx context.Context, keyword string, results []domain.SourceResult) {
	now := c.now()
	entries := make(map[string][]byte)
	for _, result := range results {
		if result.Failed {
			continue
		}
		payload, err := json.Marshal(domain.CacheEntry{
			Products:  stripSource(result.Products),
			StoredAt:  now,
			ExpiresAt: now.Add(c.ttl),
		})
		if err != nil {
			log.WithField("source", result.Source).WithError(err).Warn("failed to encode cache entry")
			continue
		}
		entries[Key(keyword, result.Source)] = payload
	}

	if len(entries) == 0 {
		return
	}

	if err := c.backend.SetMany(ctx, entries, c.ttl); err != nil {
		log.WithFields(log.Fields{
			"keyword": keyword,
			"entries": len(entries),
		}).WithError(err).Warn("failed to store results in cache")
	}
}

// decode parses a stored entry and rejects it once past its TTL or the hard max lifetime
func (c *ResultCache) decode(raw []byte, now time.Time) (*domain.CacheEntry, bool) {
	if raw == nil {
		return nil, false
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		log.WithError(err).Debug("discarding undecodable cache entry")
		return nil, false
	}

	if !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt) {
		return nil, false
	}
	if now.Sub(entry.StoredAt) >= c.maxLifetime {
		return nil, false
	}
	if entry.Products == nil {
		entry.Products = []domain.Product{}
	}

	return &entry, true
}

// stripSource drops the source tag; it is re-applied from the key on merge
func stripSource(products []domain.Product) []domain.Product {
	out := make([]domain.Product, len(products))
	for i, p := range products {
		p.Source = ""
		out[i] = p
	}
	return out
}
