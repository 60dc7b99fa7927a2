package scraper

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PaginationMode selects how additional result pages are reached
type PaginationMode string

const (
	PaginationURL    PaginationMode = "url"    // page number embedded in the search URL
	PaginationButton PaginationMode = "button" // clicking a "next" control
	PaginationScroll PaginationMode = "scroll" // infinite scroll
)

// Selectors holds the CSS selectors used to read one source's result pages.
// Field selectors are evaluated relative to each Container match.
type Selectors struct {
	Container    string `json:"container"`
	Title        string `json:"title"`
	Price        string `json:"price"`
	Link         string `json:"link"`
	Image        string `json:"image"`
	EndOfResults string `json:"endOfResults,omitempty"`
	NextButton   string `json:"nextButton,omitempty"`
}

// RetryPolicy bounds how long and how often a source run is attempted
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // first delay, doubled per attempt
	Timeout     time.Duration // per attempt
}

// Strategy is the data-driven extraction configuration of one source
type Strategy struct {
	Name       string
	BaseURL    string
	SearchURL  string // contains {keyword} and optionally {page}
	MaxPages   int
	Pagination PaginationMode
	Selectors  Selectors

	// Optional per-source hooks
	WaitSelector        string
	DismissSelectors    []string
	ScrollBeforeExtract bool
	ImageAttributes     []string
	UserAgent           string
	Headers             map[string]string
	SettleDelay         time.Duration
	ScrollDistance      int
	ScrollDelay         time.Duration
	Retry               RetryPolicy
}

// Defaults applied to any strategy field left unset
const (
	DefaultMaxPages       = 5
	DefaultSettleDelay    = 2 * time.Second
	DefaultScrollDistance = 1200
	DefaultScrollDelay    = time.Second
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var defaultImageAttributes = []string{"src", "data-src", "srcset"}

// withDefaults returns a copy of the strategy with unset fields filled in
func (s Strategy) withDefaults(retry RetryPolicy) Strategy {
	s.Name = strings.ToLower(strings.TrimSpace(s.Name))
	if s.MaxPages <= 0 {
		s.MaxPages = DefaultMaxPages
	}
	if s.Pagination == "" {
		s.Pagination = PaginationURL
	}
	if len(s.ImageAttributes) == 0 {
		s.ImageAttributes = defaultImageAttributes
	}
	if s.UserAgent == "" {
		s.UserAgent = DefaultUserAgent
	}
	if s.SettleDelay <= 0 {
		s.SettleDelay = DefaultSettleDelay
	}
	if s.ScrollDistance <= 0 {
		s.ScrollDistance = DefaultScrollDistance
	}
	if s.ScrollDelay <= 0 {
		s.ScrollDelay = DefaultScrollDelay
	}
	if s.Retry.MaxAttempts <= 0 {
		s.Retry.MaxAttempts = retry.MaxAttempts
	}
	if s.Retry.Backoff <= 0 {
		s.Retry.Backoff = retry.Backoff
	}
	if s.Retry.Timeout <= 0 {
		s.Retry.Timeout = retry.Timeout
	}
	if s.Retry.MaxAttempts <= 0 {
		s.Retry.MaxAttempts = 1
	}
	return s
}

// Validate checks that the strategy can drive a scrape
func (s Strategy) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("strategy name is required")
	}
	if _, err := url.Parse(s.BaseURL); err != nil || s.BaseURL == "" {
		return fmt.Errorf("strategy %s: invalid base url %q", s.Name, s.BaseURL)
	}
	if !strings.Contains(s.SearchURL, "{keyword}") {
		return fmt.Errorf("strategy %s: search url must contain {keyword}", s.Name)
	}
	if s.Selectors.Container == "" {
		return fmt.Errorf("strategy %s: container selector is required", s.Name)
	}
	switch s.Pagination {
	case "", PaginationURL, PaginationScroll:
	case PaginationButton:
		if s.Selectors.NextButton == "" {
			return fmt.Errorf("strategy %s: button pagination requires a nextButton selector", s.Name)
		}
	default:
		return fmt.Errorf("strategy %s: unknown pagination %q", s.Name, s.Pagination)
	}
	return nil
}

// BuildSearchURL fills the search template for keyword and 1-based page number
func (s Strategy) BuildSearchURL(keyword string, page int) string {
	encoded := encodeURIComponent(strings.TrimSpace(keyword))
	return strings.NewReplacer(
		"{keyword}", encoded,
		"{page}", strconv.Itoa(page),
	).Replace(s.SearchURL)
}

// encodeURIComponent escapes a query component with %20 for spaces
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
