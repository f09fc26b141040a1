package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"hk_bids/cache"
	"hk_bids/models"
)

// Enricher attaches listing details to rows. Results are memoized per URL
// with the same staleness policy as the sheet tables.
type Enricher struct {
	fetcher     Fetcher
	memo        *cache.Memo[*models.ListingDetails]
	concurrency int
	now         func() time.Time
}

func NewEnricher(fetcher Fetcher, ttl time.Duration, concurrency int) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{
		fetcher:     fetcher,
		memo:        cache.NewMemo[*models.ListingDetails](ttl),
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Enabled reports whether a fetcher is configured.
func (e *Enricher) Enabled() bool {
	return e != nil && e.fetcher != nil
}

// Enrich fetches and parses one listing page. Failures wrap ErrEnrichment
// and are not memoized, so the next call tries again.
func (e *Enricher) Enrich(ctx context.Context, url string) (*models.ListingDetails, error) {
	if !e.Enabled() {
		return nil, fmt.Errorf("%w: no fetcher configured", models.ErrEnrichment)
	}
	return e.memo.Get(ctx, url, func(ctx context.Context) (*models.ListingDetails, error) {
		html, err := e.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrEnrichment, url, err)
		}
		details, err := ParseListing(strings.NewReader(html), url)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrEnrichment, url, err)
		}
		details.FetchedAt = e.now()
		return details, nil
	})
}

// EnrichRows returns a copy of rows with Listing filled in. Rows without a
// listing URL are left alone. A failed unit gets an incomplete placeholder;
// its siblings are unaffected. Output order always matches input order.
func (e *Enricher) EnrichRows(ctx context.Context, rows []models.Row) []models.Row {
	out := make([]models.Row, len(rows))
	copy(out, rows)
	if !e.Enabled() {
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range out {
		url := out[i].ListingURL()
		if url == "" {
			continue
		}
		i := i
		g.Go(func() error {
			details, err := e.Enrich(gctx, url)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					zap.S().Warnf("Enricher: unit %s: %v", out[i].UnitCode(), err)
				}
				out[i].Listing = &models.ListingDetails{
					URL:        url,
					Incomplete: true,
					Missing:    []string{models.ListingFieldPage},
				}
				return nil
			}
			out[i].Listing = details
			return nil
		})
	}
	g.Wait()

	return out
}

// Warm prefetches every listing URL in rows.
func (e *Enricher) Warm(ctx context.Context, rows []models.Row) int {
	enriched := e.EnrichRows(ctx, rows)
	n := 0
	for _, r := range enriched {
		if r.Listing != nil && r.Listing.URL != "" && !r.Listing.FetchedAt.IsZero() {
			n++
		}
	}
	zap.S().Infof("Enricher: %d listings cached", e.memo.Len())
	return n
}

func (e *Enricher) Close() error {
	if !e.Enabled() {
		return nil
	}
	return e.fetcher.Close()
}
