package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"review_harvester/internal/domain"
)

// multiSite routes fetches by source URL to per-target fake sites.
type multiSite struct {
	sites map[string]*fakeSite
	cur   *fakeSite
}

func (m *multiSite) FetchPage(ctx context.Context, sourceURL string, page int) (domain.Page, error) {
	m.cur = m.sites[sourceURL]
	return m.cur.FetchPage(ctx, sourceURL, page)
}

func (m *multiSite) Extract(c []byte) (domain.Extraction, error) { return m.cur.Extract(c) }

const siteBase = "https://www.trustpilot.com/review/"

func newTestOrchestrator(t *testing.T, site *multiSite, store domain.ReviewStore, rep domain.Reporter, sink SummarySink) *Orchestrator {
	t.Helper()
	res, err := NewResolver("https://www.trustpilot.com", ".jsonl")
	require.NoError(t, err)
	eng := NewEngine(site, site, store, rep, EngineConfig{EmptyPageThreshold: 1})
	eng.sleep = noSleep
	o := NewOrchestrator(res, store, eng, rep, sink, 5*time.Second)
	o.sleep = noSleep
	o.newID = func() string { return "run-test" }
	return o
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	site := &multiSite{sites: map[string]*fakeSite{
		siteBase + "a.com": {pages: map[int][]domain.RawReview{1: bodies("a1", "a2")}},
		siteBase + "b.com": {fail: map[int]error{1: domain.ErrNotFound}},
		siteBase + "c.com": {pages: map[int][]domain.RawReview{1: bodies("c1")}},
	}}
	store := newMemStore()
	var written *domain.RunSummary
	o := newTestOrchestrator(t, site, store, nil, func(s *domain.RunSummary) error { written = s; return nil })

	sum, err := o.Run(context.Background(), []string{"a.com", "b.com", "c.com"})
	require.NoError(t, err)
	require.Same(t, sum, written)

	require.Equal(t, "run-test", sum.RunID)
	require.Equal(t, []string{"a.com.jsonl", "b.com.jsonl", "c.com.jsonl"}, sum.Order)
	require.Equal(t, 3, sum.TotalTargets)
	require.Equal(t, 3, sum.TotalNewReviews)

	require.Equal(t, domain.StatusSuccess, sum.Targets["a.com.jsonl"].Status)
	require.Equal(t, 2, sum.Targets["a.com.jsonl"].NewReviews)
	require.Equal(t, "mem/a.com.jsonl", sum.Targets["a.com.jsonl"].OutputFile)

	b := sum.Targets["b.com.jsonl"]
	require.Equal(t, domain.StatusFailed, b.Status)
	require.Contains(t, b.Error, "not found")
	require.Zero(t, b.NewReviews)

	require.Equal(t, domain.StatusSuccess, sum.Targets["c.com.jsonl"].Status)
	require.False(t, sum.CompletedAt.Before(sum.StartedAt))
}

func TestRun_InvalidIdentifiersReported(t *testing.T) {
	site := &multiSite{sites: map[string]*fakeSite{
		siteBase + "a.com": {pages: map[int][]domain.RawReview{1: bodies("x")}},
	}}
	rep := &recReporter{}
	o := newTestOrchestrator(t, site, newMemStore(), rep, nil)

	sum, err := o.Run(context.Background(), []string{"  ", "a.com"})
	require.NoError(t, err)
	require.Equal(t, 1, sum.TotalTargets)
	require.Len(t, sum.Invalid, 1)
	require.Equal(t, domain.EventInvalidTarget, rep.kinds()[0])
	require.Equal(t, domain.EventRunDone, rep.kinds()[len(rep.kinds())-1])
}

func TestRun_NoTargets(t *testing.T) {
	called := false
	o := newTestOrchestrator(t, &multiSite{}, newMemStore(), nil, func(*domain.RunSummary) error { called = true; return nil })

	sum, err := o.Run(context.Background(), []string{"", " "})
	require.ErrorIs(t, err, ErrNoTargets)
	require.Len(t, sum.Invalid, 2)
	require.False(t, called)
}

func TestRun_SummaryWriteFailure(t *testing.T) {
	site := &multiSite{sites: map[string]*fakeSite{siteBase + "a.com": {}}}
	o := newTestOrchestrator(t, site, newMemStore(), nil, func(*domain.RunSummary) error { return errors.New("read-only fs") })

	_, err := o.Run(context.Background(), []string{"a.com"})
	require.ErrorIs(t, err, ErrSummaryWrite)
}

func TestRun_StoreLoadFailure(t *testing.T) {
	site := &multiSite{sites: map[string]*fakeSite{siteBase + "a.com": {}}}
	store := newMemStore()
	store.loadErr = errors.New("permission denied")
	o := newTestOrchestrator(t, site, store, nil, nil)

	sum, err := o.Run(context.Background(), []string{"a.com"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, sum.Targets["a.com.jsonl"].Status)
	require.Contains(t, sum.Targets["a.com.jsonl"].Error, "permission denied")
	require.Empty(t, site.sites[siteBase+"a.com"].calls)
}

func TestRun_CancellationStillWritesSummary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	site := &multiSite{sites: map[string]*fakeSite{
		siteBase + "a.com": {pages: map[int][]domain.RawReview{1: bodies("a1")}},
		siteBase + "b.com": {pages: map[int][]domain.RawReview{1: bodies("b1")}},
	}}
	var written *domain.RunSummary
	o := newTestOrchestrator(t, site, newMemStore(), nil, func(s *domain.RunSummary) error { written = s; return nil })
	o.sleep = func(context.Context, time.Duration) bool {
		cancel()
		return false
	}

	sum, err := o.Run(ctx, []string{"a.com", "b.com"})
	require.NoError(t, err)
	require.NotNil(t, written)
	require.Equal(t, []string{"a.com.jsonl"}, sum.Order)
	require.Equal(t, 1, sum.TotalNewReviews)
	require.Empty(t, site.sites[siteBase+"b.com"].calls)
}

func TestRun_DelayBetweenTargetsOnly(t *testing.T) {
	site := &multiSite{sites: map[string]*fakeSite{
		siteBase + "a.com": {}, siteBase + "b.com": {}, siteBase + "c.com": {},
	}}
	o := newTestOrchestrator(t, site, newMemStore(), nil, nil)
	var delays []time.Duration
	o.sleep = func(_ context.Context, d time.Duration) bool {
		delays = append(delays, d)
		return true
	}

	_, err := o.Run(context.Background(), []string{"a.com", "b.com", "c.com"})
	require.NoError(t, err)
	require.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, delays)
}

func TestRun_OnAppendedOnlyForNewReviews(t *testing.T) {
	site := &multiSite{sites: map[string]*fakeSite{
		siteBase + "a.com": {pages: map[int][]domain.RawReview{1: bodies("a1")}},
		siteBase + "b.com": {},
	}}
	var keys []string
	o := newTestOrchestrator(t, site, newMemStore(), nil, nil).
		OnAppended(func(_ context.Context, key string) { keys = append(keys, key) })

	_, err := o.Run(context.Background(), []string{"a.com", "b.com"})
	require.NoError(t, err)
	require.Equal(t, []string{"a.com.jsonl"}, keys)
}
