package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pricescout/backend/internal/domain"
	log "github.com/sirupsen/logrus"
)

var testLogger = log.WithField("source", "shop")

// listing is one product card rendered into a fixture page
type listing struct {
	title, price, href, img string
}

func renderListings(items ...listing) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="results">`)
	for _, it := range items {
		b.WriteString(`<li class="card">`)
		if it.title != "" {
			fmt.Fprintf(&b, `<h3 class="title">%s</h3>`, it.title)
		}
		if it.price != "" {
			fmt.Fprintf(&b, `<span class="price">%s</span>`, it.price)
		}
		if it.href != "" {
			fmt.Fprintf(&b, `<a class="link" href="%s">view</a>`, it.href)
		}
		if it.img != "" {
			fmt.Fprintf(&b, `<img class="thumb" src="%s">`, it.img)
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func testStrategy(mode PaginationMode) Strategy {
	return Strategy{
		Name:       "shop",
		BaseURL:    "https://shop.example",
		SearchURL:  "https://shop.example/s?q={keyword}&page={page}",
		MaxPages:   3,
		Pagination: mode,
		Selectors: Selectors{
			Container:  "li.card",
			Title:      "h3.title",
			Price:      ".price",
			Link:       "a.link",
			Image:      "img.thumb",
			NextButton: "a.next",
		},
		SettleDelay: time.Millisecond,
		ScrollDelay: time.Millisecond,
		Retry: RetryPolicy{
			MaxAttempts: 1,
			Backoff:     time.Millisecond,
			Timeout:     5 * time.Second,
		},
	}.withDefaults(RetryPolicy{})
}

// fakeSite serves fixture HTML by URL, or a sequence advanced by next clicks and scrolls
type fakeSite struct {
	pages    map[string]string
	failing  map[string]error
	sequence []string
}

type fakePage struct {
	site         *fakeSite
	nextSelector string

	current     string
	step        int
	navigations []string
	clicks      []string
	waits       []string
	scrolls     int
	userAgent   string
	headers     map[string]string
	closed      bool

	panicOnHTML   bool
	blockNavigate bool
}

func (p *fakePage) Prepare(ctx context.Context, userAgent string, headers map[string]string) error {
	p.userAgent = userAgent
	p.headers = headers
	return nil
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.navigations = append(p.navigations, url)
	if p.blockNavigate {
		<-ctx.Done()
		return ctx.Err()
	}
	if err, ok := p.site.failing[url]; ok {
		return err
	}
	p.current = url
	p.step = 0
	return nil
}

func (p *fakePage) WaitFor(ctx context.Context, selector string) error {
	p.waits = append(p.waits, selector)
	return nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	if p.panicOnHTML {
		panic("renderer crashed")
	}
	if len(p.site.sequence) > 0 {
		return p.site.sequence[min(p.step, len(p.site.sequence)-1)], nil
	}
	if html, ok := p.site.pages[p.current]; ok {
		return html, nil
	}
	return "<html><body></body></html>", nil
}

func (p *fakePage) Click(ctx context.Context, selector string) (bool, error) {
	p.clicks = append(p.clicks, selector)
	if selector == p.nextSelector && p.step < len(p.site.sequence)-1 {
		p.step++
		return true, nil
	}
	return false, nil
}

func (p *fakePage) Scroll(ctx context.Context, distance int) error {
	p.scrolls++
	if p.step < len(p.site.sequence)-1 {
		p.step++
	}
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

// fakeBrowser hands out fakePages; the first `failures` acquisitions fail
type fakeBrowser struct {
	mu        sync.Mutex
	site      *fakeSite
	failures  int
	acquired  int
	pages     []*fakePage
	configure func(*fakePage)
}

func (b *fakeBrowser) AcquirePage(ctx context.Context) (domain.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.acquired++
	if b.acquired <= b.failures {
		return nil, fmt.Errorf("%w: chrome exited", domain.ErrBrowserUnavailable)
	}
	page := &fakePage{site: b.site, nextSelector: "a.next"}
	if b.configure != nil {
		b.configure(page)
	}
	b.pages = append(b.pages, page)
	return page, nil
}

func newTestCrawl(t *testing.T, strategy Strategy, page *fakePage) *crawl {
	t.Helper()
	extractor, err := newExtractor(strategy)
	if err != nil {
		t.Fatalf("newExtractor: %v", err)
	}
	return &crawl{
		strategy:  strategy,
		extractor: extractor,
		page:      page,
		keyword:   "rtx",
		logger:    testLogger,
	}
}
