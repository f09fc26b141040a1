package models

import "time"

// ListingDetails is what the enricher pulls off a unit's listing page.
// Counts are kept as page text.
type ListingDetails struct {
	URL        string    `json:"url"`
	Bedrooms   string    `json:"bedrooms"`
	Bathrooms  string    `json:"bathrooms"`
	Sleeps     string    `json:"sleeps"`
	Photos     []string  `json:"photos"`
	Incomplete bool      `json:"incomplete"`
	Missing    []string  `json:"missing,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Listing field names used in Missing
const (
	ListingFieldBedrooms  = "bedrooms"
	ListingFieldBathrooms = "bathrooms"
	ListingFieldSleeps    = "sleeps"
	ListingFieldPhotos    = "photos"
	ListingFieldPage      = "page"
)
