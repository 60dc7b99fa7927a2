package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pricescout/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(products []domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Title
	}
	return out
}

func TestCrawl_URLPagination(t *testing.T) {
	s := testStrategy(PaginationURL)
	page1 := s.BuildSearchURL("rtx", 1)
	page2 := s.BuildSearchURL("rtx", 2)
	page3 := s.BuildSearchURL("rtx", 3)

	t.Run("visits every page until max pages", func(t *testing.T) {
		page := &fakePage{site: &fakeSite{pages: map[string]string{
			page1: renderListings(listing{title: "A", price: "1"}),
			page2: renderListings(listing{title: "B", price: "2"}),
			page3: renderListings(listing{title: "C", price: "3"}),
		}}}

		products, err := newTestCrawl(t, s, page).run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, titles(products))
		assert.Equal(t, []string{page1, page2, page3}, page.navigations)
	})

	t.Run("empty page stops the run", func(t *testing.T) {
		page := &fakePage{site: &fakeSite{pages: map[string]string{
			page1: renderListings(listing{title: "A", price: "1"}),
			page2: renderListings(),
			page3: renderListings(listing{title: "C", price: "3"}),
		}}}

		products, err := newTestCrawl(t, s, page).run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, titles(products))
		assert.Len(t, page.navigations, 2)
	})

	t.Run("failed page is skipped", func(t *testing.T) {
		page := &fakePage{site: &fakeSite{
			pages: map[string]string{
				page2: renderListings(listing{title: "B", price: "2"}),
				page3: renderListings(listing{title: "C", price: "3"}),
			},
			failing: map[string]error{page1: errors.New("net::ERR_TIMED_OUT")},
		}}

		products, err := newTestCrawl(t, s, page).run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C"}, titles(products))
	})

	t.Run("no loadable page is an error", func(t *testing.T) {
		boom := errors.New("net::ERR_NAME_NOT_RESOLVED")
		page := &fakePage{site: &fakeSite{failing: map[string]error{page1: boom, page2: boom, page3: boom}}}

		products, err := newTestCrawl(t, s, page).run(context.Background())

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNavigation)
		assert.Empty(t, products)
		assert.Len(t, page.navigations, 3)
	})

	t.Run("end of results marker stops before extracting", func(t *testing.T) {
		marked := s
		marked.Selectors.EndOfResults = ".no-more"
		page := &fakePage{site: &fakeSite{pages: map[string]string{
			page1: renderListings(listing{title: "A", price: "1"}),
			page2: `<html><body><div class="no-more"></div><ul><li class="card"><h3 class="title">X</h3><span class="price">9</span></li></ul></body></html>`,
		}}}

		products, err := newTestCrawl(t, marked, page).run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, titles(products))
	})

	t.Run("hooks run on load", func(t *testing.T) {
		hooked := s
		hooked.MaxPages = 2
		hooked.WaitSelector = "ul.results"
		hooked.DismissSelectors = []string{".cls"}
		hooked.ScrollBeforeExtract = true
		page := &fakePage{site: &fakeSite{pages: map[string]string{
			page1: renderListings(listing{title: "A", price: "1"}),
			page2: renderListings(listing{title: "B", price: "2"}),
		}}}

		_, err := newTestCrawl(t, hooked, page).run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"ul.results", "ul.results"}, page.waits)
		assert.Equal(t, []string{".cls"}, page.clicks, "popups are dismissed on the first load only")
		assert.Equal(t, 2, page.scrolls)
	})

	t.Run("cancelled context is an error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		page := &fakePage{site: &fakeSite{failing: map[string]error{page1: context.Canceled}}}

		_, err := newTestCrawl(t, s, page).run(ctx)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, page.navigations, 1)
	})
}

func TestCrawl_ButtonPagination(t *testing.T) {
	sequence := []string{
		renderListings(listing{title: "A", price: "1"}),
		renderListings(listing{title: "B", price: "2"}),
		renderListings(listing{title: "C", price: "3"}),
		renderListings(listing{title: "D", price: "4"}),
	}

	t.Run("follows next until max pages", func(t *testing.T) {
		s := testStrategy(PaginationButton)
		page := &fakePage{site: &fakeSite{sequence: sequence}, nextSelector: "a.next"}

		products, err := newTestCrawl(t, s, page).run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, titles(products))
		assert.Equal(t, []string{"a.next", "a.next"}, page.clicks)
		assert.Len(t, page.navigations, 1)
	})

	t.Run("missing next control ends the run", func(t *testing.T) {
		s := testStrategy(PaginationButton)
		page := &fakePage{site: &fakeSite{sequence: sequence[:1]}, nextSelector: "a.next"}

		products, err := newTestCrawl(t, s, page).run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, titles(products))
	})

	t.Run("empty page ends the run", func(t *testing.T) {
		s := testStrategy(PaginationButton)
		page := &fakePage{site: &fakeSite{sequence: []string{sequence[0], renderListings(), sequence[2]}}, nextSelector: "a.next"}

		products, err := newTestCrawl(t, s, page).run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, titles(products))
		assert.Len(t, page.clicks, 1)
	})

	t.Run("first navigation failure is an error", func(t *testing.T) {
		s := testStrategy(PaginationButton)
		page := &fakePage{site: &fakeSite{
			sequence: sequence,
			failing:  map[string]error{s.BuildSearchURL("rtx", 1): errors.New("net::ERR_CONNECTION_RESET")},
		}}

		products, err := newTestCrawl(t, s, page).run(context.Background())

		assert.ErrorIs(t, err, domain.ErrNavigation)
		assert.Empty(t, products)
	})
}

func TestCrawl_ScrollPagination(t *testing.T) {
	t.Run("keeps the latest snapshot and stops on stagnation", func(t *testing.T) {
		s := testStrategy(PaginationScroll)
		s.MaxPages = 1
		page := &fakePage{site: &fakeSite{sequence: []string{
			renderListings(listing{title: "A", price: "1"}),
			renderListings(listing{title: "A", price: "1"}, listing{title: "B", price: "2"}),
		}}}

		products, err := newTestCrawl(t, s, page).run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, titles(products), "growth replaces the list instead of appending")
		// every round scrolls except the last stagnant one
		assert.Equal(t, 4, page.scrolls)
		assert.Len(t, page.navigations, 1)
	})

	t.Run("nothing ever loads", func(t *testing.T) {
		s := testStrategy(PaginationScroll)
		s.MaxPages = 1
		page := &fakePage{site: &fakeSite{sequence: []string{renderListings()}}}

		products, err := newTestCrawl(t, s, page).run(context.Background())

		require.NoError(t, err)
		assert.Empty(t, products)
		assert.Equal(t, 2, page.scrolls)
	})

	t.Run("first navigation failure is an error", func(t *testing.T) {
		s := testStrategy(PaginationScroll)
		page := &fakePage{site: &fakeSite{failing: map[string]error{s.BuildSearchURL("rtx", 1): errors.New("blocked")}}}

		_, err := newTestCrawl(t, s, page).run(context.Background())

		assert.ErrorIs(t, err, domain.ErrNavigation)
	})
}

func TestCrawl_UnknownPagination(t *testing.T) {
	s := testStrategy(PaginationURL)
	s.Pagination = "teleport"
	page := &fakePage{site: &fakeSite{}}

	_, err := newTestCrawl(t, s, page).run(context.Background())

	assert.ErrorIs(t, err, domain.ErrUnknownPagination)
	assert.Empty(t, page.navigations)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
	assert.NoError(t, sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCrawlState_String(t *testing.T) {
	assert.Equal(t, "init", stateInit.String())
	assert.Equal(t, "fetching_page", stateFetchingPage.String())
	assert.Equal(t, "extracting", stateExtracting.String())
	assert.Equal(t, "done", stateDone.String())
	assert.Equal(t, "error", stateError.String())
}
