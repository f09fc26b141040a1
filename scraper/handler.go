package scraper

import (
	"context"

	"hk_bids/config"
	"hk_bids/httputil"
)

// Fetcher loads a listing page and returns its rendered HTML.
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context, url string) (string, error)
	Close() error
}

// NewFetcher picks a fetcher for the configured enrichment mode. It returns
// nil when enrichment is off.
func NewFetcher(cfg *config.Config, clients *httputil.Clients) Fetcher {
	switch cfg.Enrich.Mode {
	case "browser":
		return NewBrowserFetcher(cfg.Enrich, cfg.Proxy.URL)
	case "http":
		return NewHTTPFetcher(clients.Scraping)
	default:
		return nil
	}
}
