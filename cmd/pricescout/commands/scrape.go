package commands

import (
	"fmt"
	"strings"

	"github.com/pricescout/backend/internal/domain"
	"github.com/spf13/cobra"
)

var scrapeFlags struct {
	keyword  string
	sources  []string
	sort     string
	minPrice float64
	maxPrice float64
	report   bool
}

func init() {
	f := scrapeCmd.Flags()
	f.StringVarP(&scrapeFlags.keyword, "keyword", "k", "", "The search keyword.")
	f.StringSliceVarP(&scrapeFlags.sources, "sources", "s", nil, "Comma separated sources (default: all enabled).")
	f.StringVar(&scrapeFlags.sort, "sort", "asc", "Price order: asc, desc or none.")
	f.Float64Var(&scrapeFlags.minPrice, "min", 0, "Minimum price (inclusive).")
	f.Float64Var(&scrapeFlags.maxPrice, "max", 0, "Maximum price (inclusive).")
	f.BoolVar(&scrapeFlags.report, "report", false, "Also print the per-source status table.")
	_ = scrapeCmd.MarkFlagRequired("keyword")

	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape --keyword <keyword> [--sources a,b] [--sort desc] [--min N] [--max N]",
	Short: "Runs a one-off aggregation and prints the products as a table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.session.Start(ctx); err != nil {
			return fmt.Errorf("start browser: %w", err)
		}

		request := scrapeRequest(cmd)
		result, err := a.service.Scrape(ctx, request)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		renderProducts(out, result.Products)
		if scrapeFlags.report {
			renderStatuses(out, result.Sources)
		}
		return nil
	},
}

// scrapeRequest maps flags to a request; price bounds apply only when set explicitly
func scrapeRequest(cmd *cobra.Command) *domain.ScrapeRequest {
	request := &domain.ScrapeRequest{
		Keyword: strings.TrimSpace(scrapeFlags.keyword),
		Sources: scrapeFlags.sources,
		Sort:    domain.ParseSortOrder(scrapeFlags.sort),
	}
	if cmd.Flags().Changed("min") {
		minPrice := scrapeFlags.minPrice
		request.MinPrice = &minPrice
	}
	if cmd.Flags().Changed("max") {
		maxPrice := scrapeFlags.maxPrice
		request.MaxPrice = &maxPrice
	}
	return request
}
