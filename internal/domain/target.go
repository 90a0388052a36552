package domain

// Target is one company/domain to harvest. Built once by the resolver,
// read-only afterwards.
type Target struct {
	Identifier string // as supplied on the command line or in the input file
	Subject    string // canonical subject, e.g. "nike.com"
	SourceURL  string // e.g. https://www.trustpilot.com/review/nike.com
	OutputKey  string // filesystem-safe store key, e.g. "nike.com.jsonl"
}

// Page is one fetched page of a target's source.
type Page struct {
	URL     string
	Number  int
	Status  int
	Content []byte
}

// Extraction is what an Extractor finds on one page.
type Extraction struct {
	Records  []RawReview
	LastPage bool
}
