package app

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"review_harvester/internal/domain"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// Resolver turns user-supplied identifiers into targets on one review site.
type Resolver struct {
	base     *url.URL
	baseHost string
	ext      string
}

// NewResolver accepts the site base URL (e.g. https://www.trustpilot.com)
// and the store file extension, including the dot.
func NewResolver(base, ext string) (*Resolver, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(base), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid site base url %q", base)
	}
	return &Resolver{base: u, baseHost: stripWWW(u.Hostname()), ext: ext}, nil
}

// Resolve accepts a bare name ("starbucks"), a domain ("www.nike.com"),
// a site URL or a review-site URL.
func (r *Resolver) Resolve(identifier string) (domain.Target, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return domain.Target{}, fmt.Errorf("%w: empty identifier", domain.ErrInvalidTarget)
	}

	var subject string
	if strings.Contains(id, "://") {
		u, err := url.Parse(id)
		if err != nil || u.Host == "" {
			return domain.Target{}, fmt.Errorf("%w: %q is not a valid url", domain.ErrInvalidTarget, id)
		}
		subject = r.subjectOf(u.Hostname(), u.Path)
	} else {
		// a bare domain may still carry a path; only the host part names
		// the subject unless the host is the review site itself
		host, path, _ := strings.Cut(id, "/")
		subject = r.subjectOf(host, path)
	}

	subject = strings.ToLower(strings.TrimSpace(subject))
	if subject == "" || strings.ContainsAny(subject, " \t?#") {
		return domain.Target{}, fmt.Errorf("%w: cannot derive subject from %q", domain.ErrInvalidTarget, id)
	}

	key := strings.Trim(unsafeKeyChars.ReplaceAllString(subject, "-"), "-")
	if key == "" || strings.Trim(key, ".") == "" {
		return domain.Target{}, fmt.Errorf("%w: %q yields no usable output key", domain.ErrInvalidTarget, id)
	}

	src := *r.base
	src.Path = "/review/" + subject
	src.RawQuery, src.Fragment = "", ""

	return domain.Target{
		Identifier: identifier,
		Subject:    subject,
		SourceURL:  src.String(),
		OutputKey:  key + r.ext,
	}, nil
}

// ResolveAll keeps input order and returns the rejected identifiers
// separately; duplicates resolving to the same output key are folded.
func (r *Resolver) ResolveAll(ids []string) ([]domain.Target, []domain.InvalidInput) {
	var (
		out     []domain.Target
		invalid []domain.InvalidInput
		seen    = map[string]struct{}{}
	)
	for _, id := range ids {
		t, err := r.Resolve(id)
		if err != nil {
			invalid = append(invalid, domain.InvalidInput{Identifier: id, Error: err.Error()})
			continue
		}
		if _, dup := seen[t.OutputKey]; dup {
			continue
		}
		seen[t.OutputKey] = struct{}{}
		out = append(out, t)
	}
	return out, invalid
}

// subjectOf returns the last path segment for review-site hosts and the
// host itself for anything else.
func (r *Resolver) subjectOf(host, path string) string {
	host = stripWWW(host)
	if host == r.baseHost || strings.HasSuffix(host, "."+r.baseHost) {
		return lastSegment(path)
	}
	return host
}

func stripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func lastSegment(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(parts[i]); s != "" {
			return s
		}
	}
	return ""
}
