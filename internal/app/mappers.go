package app

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"review_harvester/internal/domain"
)

/********** alias registry (single source of truth) **********/

var reviewAliases = map[string][]string{
	"body":     {"text", "body", "content", "reviewBody"},
	"heading":  {"title", "heading"},
	"author":   {"consumer.displayName", "author", "author.name"},
	"location": {"consumer.countryCode", "location", "countryCode"},
	"date":     {"dates.publishedDate", "date", "publishedDate", "datePublished"},
	"rating":   {"rating", "stars", "rating.value"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the trimmed string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, key string) string {
	for _, p := range reviewAliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

// ratingFlexible: 1..5 from several paths (float64/int/string like "4,0").
func ratingFlexible(m map[string]any, paths ...string) *int {
	for _, k := range paths {
		var f float64
		switch v := lookupAny(m, k).(type) {
		case float64:
			f = v
		case int:
			f = float64(v)
		case int64:
			f = float64(v)
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			n, err := strconv.ParseFloat(s, 64)
			if s == "" || err != nil {
				continue
			}
			f = n
		default:
			continue
		}
		if f != math.Trunc(f) || f < 1 || f > 5 {
			continue
		}
		x := int(f)
		return &x
	}
	return nil
}

// normalizeDate reduces RFC3339 timestamps and plain dates to YYYY-MM-DD.
func normalizeDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return ""
}

/********** review mapper **********/

// NormalizeReview maps one raw record to a Review. company is the
// identifier as supplied by the user; it is copied, not canonicalized.
func NormalizeReview(raw domain.RawReview, company, pageURL string, scrapedAt time.Time) (domain.Review, error) {
	body := firstNonEmptyAlias(raw, "body")
	if body == "" {
		return domain.Review{}, fmt.Errorf("%w: missing body", domain.ErrMalformedRecord)
	}
	return domain.Review{
		Company:   company,
		Date:      normalizeDate(firstNonEmptyAlias(raw, "date")),
		Author:    firstNonEmptyAlias(raw, "author"),
		Body:      body,
		Heading:   firstNonEmptyAlias(raw, "heading"),
		Rating:    ratingFlexible(raw, reviewAliases["rating"]...),
		Location:  firstNonEmptyAlias(raw, "location"),
		ScrapedAt: scrapedAt.UTC(),
		SourceURL: pageURL,
	}, nil
}
