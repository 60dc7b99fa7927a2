package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/pricescout/backend/internal/domain"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// SourceScraper runs one Strategy against the shared browser
type SourceScraper struct {
	strategy  Strategy
	browser   domain.Browser
	extractor *extractor
	limiter   *rate.Limiter
}

// NewSourceScraper creates a scraper for strategy. limiter may be nil to disable throttling.
func NewSourceScraper(strategy Strategy, browser domain.Browser, limiter *rate.Limiter) (*SourceScraper, error) {
	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	extractor, err := newExtractor(strategy)
	if err != nil {
		return nil, err
	}

	return &SourceScraper{
		strategy:  strategy,
		browser:   browser,
		extractor: extractor,
		limiter:   limiter,
	}, nil
}

// Name returns the registry key of the source
func (s *SourceScraper) Name() string {
	return s.strategy.Name
}

// Info describes the source for listings
func (s *SourceScraper) Info() domain.SourceInfo {
	return domain.SourceInfo{
		Name:       s.strategy.Name,
		BaseURL:    s.strategy.BaseURL,
		Pagination: string(s.strategy.Pagination),
		MaxPages:   s.strategy.MaxPages,
	}
}

// Strategy returns the strategy the scraper runs
func (s *SourceScraper) Strategy() Strategy {
	return s.strategy
}

// Run scrapes keyword with the strategy's retry policy. It never panics and never
// returns an error: failures are reported through SourceResult.Failed.
func (s *SourceScraper) Run(ctx context.Context, keyword string) domain.SourceResult {
	logger := log.WithFields(log.Fields{
		"source":  s.strategy.Name,
		"keyword": keyword,
	})
	start := time.Now()
	policy := s.strategy.Retry
	backoff := policy.Backoff

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		products, err := s.attempt(ctx, keyword, logger)
		if err == nil {
			valid := filterValid(products)
			if len(valid) == 0 {
				logger.WithField("duration", time.Since(start)).Warn("source returned no products")
				return failedResult(s.strategy.Name, domain.ErrNoProducts)
			}
			logger.WithFields(log.Fields{
				"products": len(valid),
				"attempt":  attempt,
				"duration": time.Since(start),
			}).Info("source scraped")
			return domain.SourceResult{Source: s.strategy.Name, Products: valid}
		}

		lastErr = err
		logger.WithField("attempt", attempt).WithError(err).Warn("scrape attempt failed")
		if attempt == policy.MaxAttempts || ctx.Err() != nil {
			break
		}
		if err := sleep(ctx, backoff); err != nil {
			break
		}
		backoff *= 2
	}

	logger.WithField("duration", time.Since(start)).WithError(lastErr).Error("source failed")
	return failedResult(s.strategy.Name, lastErr)
}

// attempt runs one bounded scrape on a fresh page. The page is closed on every path.
func (s *SourceScraper) attempt(ctx context.Context, keyword string, logger *log.Entry) (products []domain.Product, err error) {
	if s.strategy.Retry.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.strategy.Retry.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during scrape: %v", r)
		}
	}()

	page, err := s.browser.AcquirePage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.WithError(cerr).Debug("page close failed")
		}
	}()

	if err := page.Prepare(ctx, s.strategy.UserAgent, s.strategy.Headers); err != nil {
		return nil, fmt.Errorf("prepare page: %w", err)
	}

	c := &crawl{
		strategy:  s.strategy,
		extractor: s.extractor,
		page:      page,
		limiter:   s.limiter,
		keyword:   keyword,
		logger:    logger,
	}
	return c.run(ctx)
}

func filterValid(products []domain.Product) []domain.Product {
	valid := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Valid() {
			valid = append(valid, p)
		}
	}
	return valid
}

func failedResult(source string, err error) domain.SourceResult {
	if err == nil {
		err = domain.ErrNoProducts
	}
	return domain.SourceResult{
		Source:   source,
		Products: []domain.Product{},
		Failed:   true,
		Err:      err.Error(),
	}
}
