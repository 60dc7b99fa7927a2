package scraper

import (
	"fmt"
	"strings"
	"time"

	"github.com/pricescout/backend/internal/domain"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const chromeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultEnabledSources lists the sources served when no explicit selection is configured
var DefaultEnabledSources = []string{"amazon", "jumia", "2b", "btech", "elbadr"}

// BuiltinStrategies returns the built-in source definitions in registration order
func BuiltinStrategies() []Strategy {
	return []Strategy{
		{
			Name:       "amazon",
			BaseURL:    "https://www.amazon.eg",
			SearchURL:  "https://www.amazon.eg/s?k={keyword}&page={page}&language=en_AE",
			MaxPages:   5,
			Pagination: PaginationURL,
			Selectors: Selectors{
				Container:    "div.s-main-slot.s-result-list > .s-result-item",
				Title:        "h2 > span",
				Price:        ".a-price > .a-offscreen",
				Link:         ".a-link-normal",
				Image:        ".s-image",
				EndOfResults: "div.s-main-slot .s-no-outline .a-spacing-top-medium",
			},
			UserAgent: chromeUserAgent,
		},
		{
			Name:       "jumia",
			BaseURL:    "https://www.jumia.com.eg",
			SearchURL:  "https://www.jumia.com.eg/catalog/?q={keyword}&page={page}",
			MaxPages:   5,
			Pagination: PaginationURL,
			Selectors: Selectors{
				Container: ".-phs.-pvxs.row._no-g._4cl-3cm-shs > .c-prd",
				Title:     ".info > h3",
				Price:     ".info > .prc",
				Link:      ".core",
				Image:     "article .img-c img",
			},
			DismissSelectors:    []string{".cls"},
			ScrollBeforeExtract: true,
			ImageAttributes:     []string{"data-src", "src"},
			UserAgent:           chromeUserAgent,
		},
		{
			Name:       "2b",
			BaseURL:    "https://2b.com.eg/en/",
			SearchURL:  "https://2b.com.eg/en/catalogsearch/result?p={page}&q={keyword}",
			MaxPages:   2,
			Pagination: PaginationURL,
			Selectors: Selectors{
				Container: "ol.filterproducts li.item.product.product-item",
				Title:     "a.product-item-link",
				Price:     "span.special-price span.price-wrapper span.price",
				Link:      "a.product-item-link",
				Image:     "img.product-image-photo",
			},
			WaitSelector: "ol.filterproducts",
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
		},
		{
			Name:       "btech",
			BaseURL:    "https://btech.com",
			SearchURL:  "https://btech.com/en/s?q={keyword}",
			MaxPages:   2,
			Pagination: PaginationScroll,
			Selectors: Selectors{
				Container: "article, [data-testid*='product'], div[class*='product-card'], div.flex.flex-col:has(footer a):has(footer span)",
				Title:     "footer > a",
				Price:     "footer > div > div > span.text-medium",
				Link:      "footer > a",
				Image:     "header > div.flex.items-center.justify-center.w-full > img",
			},
			ScrollDelay: 500 * time.Millisecond,
			UserAgent:   chromeUserAgent,
		},
		{
			Name:       "elbadr",
			BaseURL:    "https://elbadrgroupeg.store",
			SearchURL:  "https://elbadrgroupeg.store/index.php?route=product/search&search={keyword}&fq=1&page={page}",
			MaxPages:   1,
			Pagination: PaginationURL,
			Selectors: Selectors{
				Container: "div.main-products.product-grid > .product-layout",
				Title:     "div.caption > div.name > a",
				Price:     "div.caption > div.price > div > span",
				Link:      "div.caption > div.name > a",
				Image:     "div.image-group img",
			},
			WaitSelector: "div.main-products.product-grid",
			UserAgent:    chromeUserAgent,
		},
		{
			Name:       "noon",
			BaseURL:    "https://www.noon.com",
			SearchURL:  "https://www.noon.com/egypt-en/search/?q={keyword}&page={page}",
			MaxPages:   1,
			Pagination: PaginationURL,
			Selectors: Selectors{
				Container: "#catalog-page-container div[class*='ProductBoxLinkHandler'], #catalog-page-container div[class*='layoutWrapper'] > div",
				Title:     "h2",
				Price:     "div[class*='sellingPrice'] strong",
				Link:      "a",
				Image:     "div[class*='ProductImageCarousel'] img",
			},
			UserAgent: chromeUserAgent,
			Retry:     RetryPolicy{Timeout: 60 * time.Second},
		},
		{
			Name:       "compumart",
			BaseURL:    "https://www.compumarts.com",
			SearchURL:  "https://www.compumarts.com/search?q={keyword}&type=product&filter.v.availability=1",
			MaxPages:   1,
			Pagination: PaginationScroll,
			Selectors: Selectors{
				Container: "#main-collection-product-grid > li",
				Title:     "div.card-information__wrapper > h3",
				Price:     "div.card-price dd.price__last > span",
				Link:      "div.card-information__wrapper > h3 > a",
				Image:     "div.card-media > img",
			},
			ImageAttributes: []string{"srcset", "src"},
			UserAgent:       chromeUserAgent,
		},
	}
}

// RegistryConfig selects and tunes the scrapers built from a strategy set
type RegistryConfig struct {
	Enabled              []string
	Retry                RetryPolicy
	SettleDelay          time.Duration
	NavigationsPerSecond float64
}

// BuildScrapers creates one scraper per enabled strategy, in strategy order.
// An unknown name in Enabled is an error so misconfiguration surfaces at startup.
func BuildScrapers(strategies []Strategy, browser domain.Browser, config RegistryConfig) ([]*SourceScraper, error) {
	enabled := config.Enabled
	if len(enabled) == 0 {
		enabled = DefaultEnabledSources
	}

	known := make(map[string]bool, len(strategies))
	for _, s := range strategies {
		known[strings.ToLower(strings.TrimSpace(s.Name))] = true
	}
	selected := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if !known[name] {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSource, name)
		}
		selected[name] = true
	}

	scrapers := make([]*SourceScraper, 0, len(selected))
	for _, s := range strategies {
		if config.SettleDelay > 0 && s.SettleDelay <= 0 {
			s.SettleDelay = config.SettleDelay
		}
		s = s.withDefaults(config.Retry)
		if !selected[s.Name] {
			continue
		}

		var limiter *rate.Limiter
		if config.NavigationsPerSecond > 0 {
			limiter = rate.NewLimiter(rate.Limit(config.NavigationsPerSecond), 1)
		}

		source, err := NewSourceScraper(s, browser, limiter)
		if err != nil {
			return nil, err
		}
		scrapers = append(scrapers, source)
		selected[s.Name] = false
	}

	log.WithField("sources", len(scrapers)).Info("source scrapers registered")
	return scrapers, nil
}
