package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricescout/backend/internal/domain"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// crawlState is the position of a pagination state machine
type crawlState int

const (
	stateInit crawlState = iota
	stateFetchingPage
	stateExtracting
	stateDone
	stateError
)

func (s crawlState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateFetchingPage:
		return "fetching_page"
	case stateExtracting:
		return "extracting"
	case stateDone:
		return "done"
	case stateError:
		return "error"
	default:
		return "unknown"
	}
}

// crawl drives one page through a strategy's pagination mode for one keyword
type crawl struct {
	strategy  Strategy
	extractor *extractor
	page      domain.Page
	limiter   *rate.Limiter
	keyword   string
	logger    *log.Entry

	dismissed bool
}

func (c *crawl) run(ctx context.Context) ([]domain.Product, error) {
	switch c.strategy.Pagination {
	case PaginationURL:
		return c.paginateURL(ctx)
	case PaginationButton:
		return c.paginateButton(ctx)
	case PaginationScroll:
		return c.paginateScroll(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPagination, c.strategy.Pagination)
	}
}

// paginateURL visits page 1..MaxPages through the search template.
// A page that fails to load is skipped; the run only fails when no page loaded at all.
func (c *crawl) paginateURL(ctx context.Context) ([]domain.Product, error) {
	products := []domain.Product{}
	state := stateInit
	pageNum := 0
	loaded := 0
	var doc *goquery.Document
	var lastErr error

	for {
		switch state {
		case stateInit:
			pageNum = 1
			state = stateFetchingPage

		case stateFetchingPage:
			if pageNum > c.strategy.MaxPages {
				state = stateDone
				continue
			}
			next, err := c.load(ctx, c.strategy.BuildSearchURL(c.keyword, pageNum))
			if err != nil {
				lastErr = err
				if ctx.Err() != nil {
					state = stateError
					continue
				}
				c.logger.WithField("page", pageNum).WithError(err).Warn("page load failed, skipping")
				pageNum++
				continue
			}
			loaded++
			doc = next
			state = stateExtracting

		case stateExtracting:
			if c.extractor.EndOfResults(doc) {
				state = stateDone
				continue
			}
			found := c.extractor.Extract(doc)
			c.logger.WithFields(log.Fields{"page": pageNum, "products": len(found)}).Debug("page extracted")
			if len(found) == 0 {
				state = stateDone
				continue
			}
			products = append(products, found...)
			pageNum++
			state = stateFetchingPage

		case stateDone:
			if loaded == 0 {
				if lastErr == nil {
					lastErr = domain.ErrNavigation
				}
				return nil, fmt.Errorf("no page could be loaded: %w", lastErr)
			}
			return products, nil

		case stateError:
			return products, lastErr
		}
	}
}

// paginateButton loads the first page and follows the next control up to MaxPages
func (c *crawl) paginateButton(ctx context.Context) ([]domain.Product, error) {
	products := []domain.Product{}
	state := stateInit
	pageNum := 0
	var doc *goquery.Document
	var lastErr error

	for {
		switch state {
		case stateInit:
			first, err := c.load(ctx, c.strategy.BuildSearchURL(c.keyword, 1))
			if err != nil {
				lastErr = err
				state = stateError
				continue
			}
			pageNum = 1
			doc = first
			state = stateExtracting

		case stateExtracting:
			if c.extractor.EndOfResults(doc) {
				state = stateDone
				continue
			}
			found := c.extractor.Extract(doc)
			c.logger.WithFields(log.Fields{"page": pageNum, "products": len(found)}).Debug("page extracted")
			if len(found) == 0 {
				state = stateDone
				continue
			}
			products = append(products, found...)
			if pageNum >= c.strategy.MaxPages {
				state = stateDone
				continue
			}
			state = stateFetchingPage

		case stateFetchingPage:
			clicked, err := c.page.Click(ctx, c.strategy.Selectors.NextButton)
			if err != nil || !clicked {
				if err != nil {
					c.logger.WithError(err).Debug("next button click failed")
				}
				state = stateDone
				continue
			}
			if err := sleep(ctx, c.strategy.SettleDelay); err != nil {
				lastErr = err
				state = stateError
				continue
			}
			next, err := c.snapshot(ctx)
			if err != nil {
				if ctx.Err() != nil {
					lastErr = err
					state = stateError
					continue
				}
				c.logger.WithError(err).Warn("snapshot after next page failed")
				state = stateDone
				continue
			}
			pageNum++
			doc = next
			state = stateExtracting

		case stateDone:
			return products, nil

		case stateError:
			return products, lastErr
		}
	}
}

// paginateScroll loads the page once and scrolls until the listing count stops
// growing for MaxPages*3 consecutive rounds. Each growth replaces the accumulated list.
func (c *crawl) paginateScroll(ctx context.Context) ([]domain.Product, error) {
	products := []domain.Product{}
	state := stateInit
	maxStagnation := c.strategy.MaxPages * 3
	stagnation := 0
	previous := 0
	var doc *goquery.Document
	var lastErr error

	for {
		switch state {
		case stateInit:
			first, err := c.load(ctx, c.strategy.BuildSearchURL(c.keyword, 1))
			if err != nil {
				lastErr = err
				state = stateError
				continue
			}
			doc = first
			state = stateExtracting

		case stateExtracting:
			found := c.extractor.Extract(doc)
			if len(found) == previous {
				stagnation++
			} else {
				stagnation = 0
				previous = len(found)
				products = found
			}
			if stagnation >= maxStagnation {
				state = stateDone
				continue
			}
			state = stateFetchingPage

		case stateFetchingPage:
			if err := c.page.Scroll(ctx, c.strategy.ScrollDistance); err != nil {
				c.logger.WithError(err).Debug("scroll failed")
			}
			if err := sleep(ctx, c.strategy.ScrollDelay); err != nil {
				lastErr = err
				state = stateError
				continue
			}
			next, err := c.snapshot(ctx)
			if err != nil {
				if ctx.Err() != nil {
					lastErr = err
					state = stateError
					continue
				}
				c.logger.WithError(err).Debug("snapshot after scroll failed")
			} else {
				doc = next
			}
			state = stateExtracting

		case stateDone:
			c.logger.WithField("products", len(products)).Debug("scrolling stagnated")
			return products, nil

		case stateError:
			return products, lastErr
		}
	}
}

// load navigates to target, applies the strategy hooks and returns a DOM snapshot
func (c *crawl) load(ctx context.Context, target string) (*goquery.Document, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if err := c.page.Navigate(ctx, target); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrNavigation, target, err)
	}

	if c.strategy.WaitSelector != "" {
		if err := c.page.WaitFor(ctx, c.strategy.WaitSelector); err != nil {
			c.logger.WithError(err).Debug("wait selector not found")
		}
	}

	if !c.dismissed {
		c.dismissed = true
		for _, selector := range c.strategy.DismissSelectors {
			if clicked, err := c.page.Click(ctx, selector); err == nil && clicked {
				c.logger.WithField("selector", selector).Debug("popup dismissed")
			}
		}
	}

	if c.strategy.ScrollBeforeExtract {
		if err := c.page.Scroll(ctx, c.strategy.ScrollDistance); err != nil {
			c.logger.WithError(err).Debug("scroll before extract failed")
		}
		if err := sleep(ctx, c.strategy.ScrollDelay); err != nil {
			return nil, err
		}
	}

	return c.snapshot(ctx)
}

func (c *crawl) snapshot(ctx context.Context) (*goquery.Document, error) {
	html, err := c.page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	return doc, nil
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
