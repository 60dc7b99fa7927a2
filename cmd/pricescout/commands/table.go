package commands

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pricescout/backend/internal/domain"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func renderProducts(out io.Writer, products []domain.Product) {
	t := newTable(out)
	t.AppendHeader(table.Row{"#", "Source", "Title", "Price", "Link"})
	for i, p := range products {
		t.AppendRow(table.Row{i + 1, p.Source, truncate(p.Title, 60), p.Price, deref(p.Link)})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(products), ""})
	t.Render()
}

func renderStatuses(out io.Writer, statuses []domain.SourceStatus) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Source", "Status", "Products"})
	for _, s := range statuses {
		t.AppendRow(table.Row{s.Source, s.Status, s.Count})
	}
	t.Render()
}

func renderSources(out io.Writer, infos []domain.SourceInfo) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Name", "Base URL", "Pagination", "Max pages"})
	for _, info := range infos {
		t.AppendRow(table.Row{info.Name, info.BaseURL, info.Pagination, info.MaxPages})
	}
	t.Render()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
