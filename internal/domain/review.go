package domain

import "time"

// Review is one harvested record. Values are copied, never mutated after
// they are handed to a store.
type Review struct {
	Company   string    `json:"company"` // identifier as supplied, not canonicalized
	Date      string    `json:"date"`    // YYYY-MM-DD or ""
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Heading   string    `json:"heading"`
	Rating    *int      `json:"rating,omitempty"` // 1..5, nil when absent
	Location  string    `json:"location"`
	ScrapedAt time.Time `json:"scraped_at"`
	SourceURL string    `json:"source_url"`
}

// RawReview is one unnormalized field mapping as returned by an Extractor.
type RawReview = map[string]any

func (r Review) Fingerprint() Fingerprint { return FingerprintOf(r.Body) }

type ReviewsPage struct {
	Items []Review `json:"items"`
	Total int      `json:"total"`
}
