package domain

import (
	"strings"
	"time"
)

// Product represents a single listing extracted from an e-commerce source
type Product struct {
	Title  string  `json:"title"`
	Price  string  `json:"price"` // Raw display string, e.g. "EGP 1,200"
	Link   *string `json:"link"`  // Absolute URL, nil when it could not be extracted
	Image  *string `json:"image"` // Absolute URL, nil when it could not be extracted
	Source string  `json:"source,omitempty"`
}

// Valid reports whether the product carries both a title and a price
func (p Product) Valid() bool {
	return strings.TrimSpace(p.Title) != "" && strings.TrimSpace(p.Price) != ""
}

// SourceResult is the outcome of scraping (or looking up) one source for one keyword.
// It is never mutated after creation; consumers copy Products before changing them.
type SourceResult struct {
	Source   string    `json:"source"`
	Products []Product `json:"products"`
	Failed   bool      `json:"failed"`
	Err      string    `json:"error,omitempty"`
}

// CacheEntry is the payload stored per (keyword, source) pair
type CacheEntry struct {
	Products  []Product `json:"products"`
	StoredAt  time.Time `json:"storedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SortOrder selects how aggregated products are ordered by numeric price
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
	SortNone SortOrder = "none"
)

// ParseSortOrder maps a query value to a SortOrder. Absent or unknown values sort ascending.
func ParseSortOrder(s string) SortOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desc", "des":
		return SortDesc
	case "none":
		return SortNone
	default:
		return SortAsc
	}
}

// ScrapeRequest represents an aggregation request for one keyword
type ScrapeRequest struct {
	Keyword  string    `json:"keyword"`
	Sources  []string  `json:"sources,omitempty"`
	Sort     SortOrder `json:"sort,omitempty"`
	MinPrice *float64  `json:"minPrice,omitempty"`
	MaxPrice *float64  `json:"maxPrice,omitempty"`
}

// SourceState describes where a source's products came from in an aggregation
type SourceState string

const (
	SourceCached  SourceState = "cached"
	SourceScraped SourceState = "scraped"
	SourceFailed  SourceState = "failed"
)

// SourceStatus reports the outcome for one requested source
type SourceStatus struct {
	Source string      `json:"source"`
	Status SourceState `json:"status"`
	Count  int         `json:"count"`
}

// ScrapeResult is the filtered, sorted aggregation returned to callers
type ScrapeResult struct {
	Products []Product      `json:"products"`
	Sources  []SourceStatus `json:"sources"`
}

// SourceInfo describes a registered source for listings
type SourceInfo struct {
	Name       string `json:"name"`
	BaseURL    string `json:"baseUrl"`
	Pagination string `json:"pagination"`
	MaxPages   int    `json:"maxPages"`
}
