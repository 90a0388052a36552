package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"review_harvester/internal/domain"
)

// fakeSite serves numbered pages and doubles as their extractor.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[int][]domain.RawReview
	last    int // page carrying the last-page hint, 0 for none
	fail    map[int]error
	calls   []int
	onFetch func(page int)
}

func (s *fakeSite) FetchPage(ctx context.Context, sourceURL string, page int) (domain.Page, error) {
	s.mu.Lock()
	s.calls = append(s.calls, page)
	hook := s.onFetch
	s.mu.Unlock()
	if hook != nil {
		hook(page)
	}
	if err := ctx.Err(); err != nil {
		return domain.Page{}, err
	}
	pageURL := fmt.Sprintf("%s?page=%d", sourceURL, page)
	if err := s.fail[page]; err != nil {
		return domain.Page{}, &domain.FetchFailure{URL: pageURL, Page: page, Err: err}
	}
	return domain.Page{URL: pageURL, Number: page, Status: 200, Content: []byte(strconv.Itoa(page))}, nil
}

func (s *fakeSite) Extract(content []byte) (domain.Extraction, error) {
	n, err := strconv.Atoi(string(content))
	if err != nil {
		return domain.Extraction{}, err
	}
	return domain.Extraction{Records: s.pages[n], LastPage: s.last != 0 && n >= s.last}, nil
}

func (s *fakeSite) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func bodies(bs ...string) []domain.RawReview {
	out := make([]domain.RawReview, 0, len(bs))
	for _, b := range bs {
		out = append(out, domain.RawReview{"text": b, "rating": float64(5)})
	}
	return out
}

// memStore is an in-memory ReviewStore.
type memStore struct {
	mu        sync.Mutex
	data      map[string][]domain.Review
	failAfter int // fail every append once this many succeeded; 0 disables
	appends   int
	loadErr   error
}

func newMemStore() *memStore { return &memStore{data: map[string][]domain.Review{}} }

func (m *memStore) Load(ctx context.Context, key string) (*domain.IdentityIndex, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, 0, &domain.StoreError{Key: key, Op: "load", Err: m.loadErr}
	}
	idx := domain.NewIdentityIndex()
	for _, r := range m.data[key] {
		idx.Add(r.Fingerprint())
	}
	return idx, len(m.data[key]), nil
}

func (m *memStore) Append(ctx context.Context, key string, r domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter > 0 && m.appends >= m.failAfter {
		return &domain.StoreError{Key: key, Op: "append", Err: fmt.Errorf("disk full")}
	}
	m.appends++
	m.data[key] = append(m.data[key], r)
	return nil
}

func (m *memStore) Location(key string) string { return "mem/" + key }

func (m *memStore) records(key string) []domain.Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Review(nil), m.data[key]...)
}

type recReporter struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recReporter) Report(ev domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recReporter) kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func noSleep(ctx context.Context, _ time.Duration) bool { return ctx.Err() == nil }
