package trustpilot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"review_harvester/internal/domain"
)

// Extractor reads the review list embedded by the site in its
// script#__NEXT_DATA__ payload.
type Extractor struct{}

var _ domain.Extractor = Extractor{}

type nextData struct {
	Props struct {
		PageProps struct {
			Reviews []map[string]any `json:"reviews"`
			Filters struct {
				Pagination *struct {
					CurrentPage int `json:"currentPage"`
					TotalPages  int `json:"totalPages"`
				} `json:"pagination"`
			} `json:"filters"`
		} `json:"pageProps"`
	} `json:"props"`
}

// Extract returns zero records, not an error, when the page carries no
// review payload at all.
func (Extractor) Extract(content []byte) (domain.Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("parse document: %w", err)
	}

	raw := strings.TrimSpace(doc.Find(`script#__NEXT_DATA__`).First().Text())
	if raw == "" {
		return domain.Extraction{}, nil
	}

	var nd nextData
	if err := json.Unmarshal([]byte(raw), &nd); err != nil {
		return domain.Extraction{}, fmt.Errorf("decode __NEXT_DATA__: %w", err)
	}

	pp := nd.Props.PageProps
	out := domain.Extraction{Records: make([]domain.RawReview, 0, len(pp.Reviews))}
	for _, r := range pp.Reviews {
		if r != nil {
			out.Records = append(out.Records, r)
		}
	}
	if p := pp.Filters.Pagination; p != nil && p.TotalPages > 0 {
		out.LastPage = p.CurrentPage >= p.TotalPages
	}
	return out, nil
}
