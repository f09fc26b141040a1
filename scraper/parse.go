package scraper

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"hk_bids/models"
)

// Listing page layout. The stats list carries bedrooms, bathrooms and
// sleeps in that order; gallery photos share one class.
const (
	bedroomsSelector  = ".listing-stats li:nth-child(1) .stat-value"
	bathroomsSelector = ".listing-stats li:nth-child(2) .stat-value"
	sleepsSelector    = ".listing-stats li:nth-child(3) .stat-value"
	photoSelector     = "img.listing-photo"
)

// ParseListing extracts listing details from page HTML. Missing fields do
// not fail the parse; they are named in Missing and mark the result
// incomplete.
func ParseListing(r io.Reader, url string) (*models.ListingDetails, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	data := &models.ListingDetails{URL: url}
	data.Bedrooms = extractText(doc, bedroomsSelector)
	data.Bathrooms = extractText(doc, bathroomsSelector)
	data.Sleeps = extractText(doc, sleepsSelector)

	doc.Find(photoSelector).Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" {
			src, _ = s.Attr("data-src")
		}
		if src = strings.TrimSpace(src); src != "" {
			data.Photos = append(data.Photos, src)
		}
	})

	for _, f := range []struct {
		name  string
		value string
	}{
		{models.ListingFieldBedrooms, data.Bedrooms},
		{models.ListingFieldBathrooms, data.Bathrooms},
		{models.ListingFieldSleeps, data.Sleeps},
	} {
		if f.value == "" {
			data.Missing = append(data.Missing, f.name)
		}
	}
	if len(data.Photos) == 0 {
		data.Missing = append(data.Missing, models.ListingFieldPhotos)
	}
	data.Incomplete = len(data.Missing) > 0

	return data, nil
}

func extractText(doc *goquery.Document, selector string) string {
	return strings.Join(strings.Fields(doc.Find(selector).First().Text()), " ")
}
