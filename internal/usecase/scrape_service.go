package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pricescout/backend/internal/domain"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ScrapeServiceConfig holds configuration for the scrape service
type ScrapeServiceConfig struct {
	RequestTimeout time.Duration
	MaxConcurrency int
	StoreTimeout   time.Duration
}

// ScrapeService aggregates products for a keyword across the registered sources
type ScrapeService struct {
	cache          domain.ResultCache
	scrapers       map[string]domain.SourceScraper
	order          []string
	requestTimeout time.Duration
	maxConcurrency int
	storeTimeout   time.Duration
}

// NewScrapeService creates a scrape service over scrapers, in registration order
func NewScrapeService(
	cache domain.ResultCache,
	scrapers []domain.SourceScraper,
	config ScrapeServiceConfig,
) *ScrapeService {
	requestTimeout := config.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 90 * time.Second
	}
	maxConcurrency := config.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	storeTimeout := config.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}

	s := &ScrapeService{
		cache:          cache,
		scrapers:       make(map[string]domain.SourceScraper, len(scrapers)),
		requestTimeout: requestTimeout,
		maxConcurrency: maxConcurrency,
		storeTimeout:   storeTimeout,
	}
	for _, scraper := range scrapers {
		name := strings.ToLower(scraper.Name())
		if _, dup := s.scrapers[name]; dup {
			continue
		}
		s.scrapers[name] = scraper
		s.order = append(s.order, name)
	}
	return s
}

// Sources describes the registered sources in registration order
func (s *ScrapeService) Sources() []domain.SourceInfo {
	infos := make([]domain.SourceInfo, 0, len(s.order))
	for _, name := range s.order {
		infos = append(infos, s.scrapers[name].Info())
	}
	return infos
}

// Scrape aggregates, filters and sorts products for a request.
// Flow: normalize sources -> batched cache lookup -> scrape misses concurrently ->
// batched cache write -> merge -> filter -> sort
func (s *ScrapeService) Scrape(ctx context.Context, request *domain.ScrapeRequest) (*domain.ScrapeResult, error) {
	if request == nil || strings.TrimSpace(request.Keyword) == "" {
		return nil, domain.ErrInvalidRequest
	}
	keyword := strings.TrimSpace(request.Keyword)
	sources := s.normalizeSources(request.Sources)

	logger := log.WithFields(log.Fields{
		"keyword": keyword,
		"sources": len(sources),
	})
	start := time.Now()

	hits, misses := s.cache.LookupMany(ctx, keyword, sources)
	fresh := s.scrapeAll(ctx, keyword, misses)

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	s.cache.StoreMany(storeCtx, keyword, fresh)
	cancel()

	products := merge(hits, fresh)
	products = filterByPrice(products, request.MinPrice, request.MaxPrice)
	sortByPrice(products, request.Sort)

	logger.WithFields(log.Fields{
		"cached":   len(hits),
		"scraped":  len(fresh),
		"products": len(products),
		"duration": time.Since(start),
	}).Info("scrape completed")

	return &domain.ScrapeResult{
		Products: products,
		Sources:  statuses(sources, hits, fresh),
	}, nil
}

// normalizeSources trims, lower-cases, de-duplicates and drops unknown names.
// A selection that is absent or leaves nothing behind means every registered source.
func (s *ScrapeService) normalizeSources(requested []string) []string {
	if len(requested) == 0 {
		return append([]string(nil), s.order...)
	}

	seen := make(map[string]bool, len(requested))
	normalized := make([]string, 0, len(requested))
	for _, name := range requested {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		if _, ok := s.scrapers[name]; !ok {
			log.WithField("source", name).Debug("ignoring unknown source")
			continue
		}
		seen[name] = true
		normalized = append(normalized, name)
	}
	if len(normalized) == 0 {
		return append([]string(nil), s.order...)
	}
	return normalized
}

// scrapeAll runs the scrapers for sources concurrently under the request deadline.
// Results are returned in completion order; sources still running at the deadline are omitted.
func (s *ScrapeService) scrapeAll(ctx context.Context, keyword string, sources []string) []domain.SourceResult {
	if len(sources) == 0 {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	// A plain Group: one source failing must not cancel its siblings
	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	results := make(chan domain.SourceResult, len(sources))

	go func() {
		for _, name := range sources {
			scraper := s.scrapers[name]
			g.Go(func() error {
				if runCtx.Err() != nil {
					return nil
				}
				results <- runSafely(runCtx, scraper, keyword)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	fresh := make([]domain.SourceResult, 0, len(sources))
	for {
		select {
		case result, ok := <-results:
			if !ok {
				return fresh
			}
			fresh = append(fresh, result)
		case <-runCtx.Done():
			// keep whatever finished alongside the deadline
			for {
				select {
				case result, ok := <-results:
					if !ok {
						return fresh
					}
					fresh = append(fresh, result)
				default:
					log.WithFields(log.Fields{
						"keyword":   keyword,
						"completed": len(fresh),
						"requested": len(sources),
					}).Warn("request deadline reached, dropping unfinished sources")
					return fresh
				}
			}
		}
	}
}

// runSafely shields the aggregation from a scraper that breaks its no-panic contract
func runSafely(ctx context.Context, scraper domain.SourceScraper, keyword string) (result domain.SourceResult) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("source", scraper.Name()).Errorf("scraper panicked: %v", r)
			result = domain.SourceResult{
				Source:   strings.ToLower(scraper.Name()),
				Products: []domain.Product{},
				Failed:   true,
				Err:      fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	result = scraper.Run(ctx, keyword)
	result.Source = strings.ToLower(scraper.Name())
	return result
}

// merge concatenates cached hits then fresh results, copying each product and tagging its source
func merge(hits, fresh []domain.SourceResult) []domain.Product {
	total := 0
	for _, r := range hits {
		total += len(r.Products)
	}
	for _, r := range fresh {
		if !r.Failed {
			total += len(r.Products)
		}
	}

	products := make([]domain.Product, 0, total)
	for _, group := range [][]domain.SourceResult{hits, fresh} {
		for _, result := range group {
			if result.Failed {
				continue
			}
			for _, p := range result.Products {
				p.Source = result.Source
				products = append(products, p)
			}
		}
	}
	return products
}

func statuses(sources []string, hits, fresh []domain.SourceResult) []domain.SourceStatus {
	byName := make(map[string]domain.SourceStatus, len(hits)+len(fresh))
	for _, r := range hits {
		byName[r.Source] = domain.SourceStatus{Source: r.Source, Status: domain.SourceCached, Count: len(r.Products)}
	}
	for _, r := range fresh {
		if r.Failed {
			byName[r.Source] = domain.SourceStatus{Source: r.Source, Status: domain.SourceFailed}
			continue
		}
		byName[r.Source] = domain.SourceStatus{Source: r.Source, Status: domain.SourceScraped, Count: len(r.Products)}
	}

	out := make([]domain.SourceStatus, 0, len(sources))
	for _, name := range sources {
		status, ok := byName[name]
		if !ok {
			status = domain.SourceStatus{Source: name, Status: domain.SourceFailed}
		}
		out = append(out, status)
	}
	return out
}
