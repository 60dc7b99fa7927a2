package commands

import (
	"context"
	"fmt"

	"github.com/pricescout/backend/config"
	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/browser"
	"github.com/pricescout/backend/internal/infrastructure/cache"
	"github.com/pricescout/backend/internal/infrastructure/scraper"
	"github.com/pricescout/backend/internal/usecase"
	log "github.com/sirupsen/logrus"
)

// app is the wired object graph shared by the commands
type app struct {
	session  *browser.Session
	redis    *cache.RedisCache
	scrapers []*scraper.SourceScraper
	service  *usecase.ScrapeService
}

// newApp wires browser, cache, scrapers and the scrape service. Chrome is not launched here.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{session: newSession(cfg.Browser)}

	var err error
	a.scrapers, err = buildScrapers(cfg, a.session)
	if err != nil {
		return nil, err
	}

	backend, err := a.cacheBackend(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	resultCache := cache.NewResultCache(backend, cache.ResultCacheConfig{
		TTL:         cfg.Cache.TTL,
		MaxLifetime: cfg.Cache.MaxLifetime,
	})

	sources := make([]domain.SourceScraper, len(a.scrapers))
	for i, s := range a.scrapers {
		sources[i] = s
	}
	a.service = usecase.NewScrapeService(resultCache, sources, usecase.ScrapeServiceConfig{
		RequestTimeout: cfg.Scraper.RequestTimeout,
		MaxConcurrency: cfg.Scraper.MaxConcurrency,
	})

	return a, nil
}

func newSession(cfg config.BrowserConfig) *browser.Session {
	return browser.NewSession(browser.Options{
		Headless:     cfg.Headless,
		ExecPath:     cfg.ExecPath,
		NoSandbox:    cfg.NoSandbox,
		UserAgent:    cfg.UserAgent,
		StartTimeout: cfg.StartTimeout,
		WaitTimeout:  cfg.WaitTimeout,
	})
}

// buildScrapers loads the strategy set and builds the enabled scrapers on top of b
func buildScrapers(cfg *config.Config, b domain.Browser) ([]*scraper.SourceScraper, error) {
	strategies, err := loadStrategies(cfg.Scraper.SourcesFile)
	if err != nil {
		return nil, err
	}

	scrapers, err := scraper.BuildScrapers(strategies, b, scraper.RegistryConfig{
		Enabled: cfg.Scraper.EnabledSources,
		Retry: scraper.RetryPolicy{
			MaxAttempts: cfg.Scraper.MaxAttempts,
			Backoff:     cfg.Scraper.Backoff,
			Timeout:     cfg.Scraper.SourceTimeout,
		},
		SettleDelay:          cfg.Scraper.SettleDelay,
		NavigationsPerSecond: cfg.Scraper.NavigationsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("build scrapers: %w", err)
	}
	return scrapers, nil
}

// sourceInfos describes the enabled sources without opening the cache or launching Chrome
func sourceInfos(cfg *config.Config) ([]domain.SourceInfo, error) {
	session := newSession(cfg.Browser)
	defer session.Close()

	scrapers, err := buildScrapers(cfg, session)
	if err != nil {
		return nil, err
	}
	infos := make([]domain.SourceInfo, len(scrapers))
	for i, s := range scrapers {
		infos[i] = s.Info()
	}
	return infos, nil
}

func loadStrategies(sourcesFile string) ([]scraper.Strategy, error) {
	strategies := scraper.BuiltinStrategies()
	if sourcesFile == "" {
		return strategies, nil
	}
	strategies, err := scraper.LoadStrategies(sourcesFile, strategies)
	if err != nil {
		return nil, fmt.Errorf("load sources file: %w", err)
	}
	log.WithField("file", sourcesFile).Info("loaded source definitions")
	return strategies, nil
}

func (a *app) cacheBackend(ctx context.Context, cfg config.CacheConfig) (domain.CacheRepository, error) {
	if cfg.Type != "redis" {
		log.WithField("size", cfg.Size).Info("using in-memory cache")
		return cache.NewMemoryCache(cfg.Size, cfg.MaxLifetime), nil
	}

	redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.redis = redisCache
	log.Info("using redis cache")
	return redisCache, nil
}

// Close releases Chrome and the cache connection
func (a *app) Close() {
	a.session.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.WithError(err).Warn("failed to close redis")
		}
	}
}
