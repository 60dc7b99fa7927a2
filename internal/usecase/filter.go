package usecase

import (
	"cmp"
	"slices"

	"github.com/pricescout/backend/internal/domain"
)

// filterByPrice keeps products whose numeric price lies in [min, max].
// With no bound set every product is kept; with any bound set, unparsable prices are dropped.
func filterByPrice(products []domain.Product, minPrice, maxPrice *float64) []domain.Product {
	if minPrice == nil && maxPrice == nil {
		return products
	}

	filtered := make([]domain.Product, 0, len(products))
	for _, p := range products {
		price, ok := domain.ParsePrice(p.Price)
		if !ok {
			continue
		}
		if minPrice != nil && price < *minPrice {
			continue
		}
		if maxPrice != nil && price > *maxPrice {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

// sortByPrice orders products in place by numeric price. Unparsable prices always
// sort last and ties keep their merge order.
func sortByPrice(products []domain.Product, order domain.SortOrder) {
	if order == domain.SortNone {
		return
	}

	type keyed struct {
		product domain.Product
		price   float64
		ok      bool
	}
	keys := make([]keyed, len(products))
	for i, p := range products {
		price, ok := domain.ParsePrice(p.Price)
		keys[i] = keyed{product: p, price: price, ok: ok}
	}

	slices.SortStableFunc(keys, func(a, b keyed) int {
		switch {
		case !a.ok && !b.ok:
			return 0
		case !a.ok:
			return 1
		case !b.ok:
			return -1
		}
		if order == domain.SortDesc {
			return cmp.Compare(b.price, a.price)
		}
		return cmp.Compare(a.price, b.price)
	})

	for i, k := range keys {
		products[i] = k.product
	}
}
