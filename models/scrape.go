package models

import "time"

// Target is one hard-coded listing page a job scrapes, together with the
// identity the resulting document gets and the fallbacks used when the page
// does not expose a field.
type Target struct {
	AssetID          string `json:"asset_id"`
	URL              string `json:"url"`
	Name             string `json:"name,omitempty"`
	DescriptionLimit int    `json:"description_limit,omitempty"`

	// DescriptionTemplate replaces the scraped description when set.
	// {capacity} and {location} expand to the listing's resolved values.
	DescriptionTemplate string `json:"description_template,omitempty"`

	Defaults Listing `json:"defaults"`
}

// ScrapedPage is the raw field set pulled from one listing page, before
// normalization.
type ScrapedPage struct {
	Target      Target            `json:"-"`
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	RawPrice    string            `json:"raw_price"`
	Specs       map[string]string `json:"specs"`
	Location    string            `json:"location"`
	ImageURL    string            `json:"image_url"`
	Source      string            `json:"source"`
	ScrapedAt   time.Time         `json:"scraped_at"`
}

// ScraperResult holds the overall result of a scraping operation
type ScraperResult struct {
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	PageCount    int
}
