package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricescout/backend/internal/domain"
	log "github.com/sirupsen/logrus"
)

// extractor reads product listings out of a rendered page snapshot
type extractor struct {
	source     string
	selectors  Selectors
	base       *url.URL
	imageAttrs []string
}

func newExtractor(s Strategy) (*extractor, error) {
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url for %s: %w", s.Name, err)
	}
	attrs := s.ImageAttributes
	if len(attrs) == 0 {
		attrs = defaultImageAttributes
	}
	return &extractor{
		source:     s.Name,
		selectors:  s.Selectors,
		base:       base,
		imageAttrs: attrs,
	}, nil
}

// Extract returns the valid listings found under the container selector, in document order
func (e *extractor) Extract(doc *goquery.Document) []domain.Product {
	products := []domain.Product{}
	doc.Find(e.selectors.Container).Each(func(_ int, item *goquery.Selection) {
		title := e.field("title", func() *string { return text(item, e.selectors.Title) })
		price := e.field("price", func() *string { return text(item, e.selectors.Price) })
		if title == nil || price == nil {
			return
		}

		products = append(products, domain.Product{
			Title: *title,
			Price: *price,
			Link:  e.field("link", func() *string { return e.resolve(attr(item, e.selectors.Link, "href")) }),
			Image: e.field("image", func() *string { return e.resolve(e.image(item)) }),
		})
	})
	return products
}

// EndOfResults reports whether the end-of-results marker is present
func (e *extractor) EndOfResults(doc *goquery.Document) bool {
	if e.selectors.EndOfResults == "" {
		return false
	}
	return doc.Find(e.selectors.EndOfResults).Length() > 0
}

// field isolates one field read so a failure only blanks that field
func (e *extractor) field(name string, read func() *string) (value *string) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"source": e.source,
				"field":  name,
			}).Debugf("field extraction panicked: %v", r)
			value = nil
		}
	}()
	return read()
}

func (e *extractor) image(item *goquery.Selection) *string {
	img := find(item, e.selectors.Image)
	if img == nil {
		return nil
	}
	for _, name := range e.imageAttrs {
		value, ok := img.Attr(name)
		if !ok {
			continue
		}
		if name == "srcset" {
			value = firstSrcsetCandidate(value)
		}
		if value = strings.TrimSpace(value); value != "" {
			return &value
		}
	}
	return nil
}

// resolve makes href absolute against the source base URL
func (e *extractor) resolve(href *string) *string {
	if href == nil {
		return nil
	}
	ref, err := url.Parse(*href)
	if err != nil {
		return nil
	}
	resolved := e.base.ResolveReference(ref).String()
	return &resolved
}

// find returns the first match of selector under item, or nil
func find(item *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return nil
	}
	match := item.Find(selector).First()
	if match.Length() == 0 {
		return nil
	}
	return match
}

func text(item *goquery.Selection, selector string) *string {
	match := find(item, selector)
	if match == nil {
		return nil
	}
	value := collapseWhitespace(match.Text())
	if value == "" {
		return nil
	}
	return &value
}

func attr(item *goquery.Selection, selector, name string) *string {
	match := find(item, selector)
	if match == nil {
		return nil
	}
	value, ok := match.Attr(name)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return nil
	}
	return &value
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstSrcsetCandidate returns the URL of the first "url descriptor" pair
func firstSrcsetCandidate(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
