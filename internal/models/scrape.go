package models

import "time"

// PageMetadata is the descriptive information pulled from a page head.
type PageMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// ScrapeResult is what a scraping strategy produces for one URL.
// MainContent is plain text and never empty on success.
type ScrapeResult struct {
	URL         string       `json:"url"`
	Metadata    PageMetadata `json:"metadata"`
	MainContent string       `json:"mainContent"`
	FetchedAt   time.Time    `json:"fetchedAt"`
	Strategy    string       `json:"strategy"`
}
