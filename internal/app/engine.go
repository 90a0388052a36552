package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"review_harvester/internal/adapters/observability"
	"review_harvester/internal/domain"
)

type EngineConfig struct {
	// EmptyPageThreshold consecutive pages without records end pagination.
	EmptyPageThreshold int
	PageDelay          time.Duration
	// MaxPages caps fetches per target; 0 means no cap.
	MaxPages int
}

// Engine walks one target's pages strictly in order and appends every
// review whose fingerprint is not yet in the target's identity index.
type Engine struct {
	fetcher   domain.PageFetcher
	extractor domain.Extractor
	store     domain.ReviewStore
	reporter  domain.Reporter
	cfg       EngineConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool

	// scraped_at high-water mark, shared by every target of a run
	mu          sync.Mutex
	lastScraped time.Time
}

func NewEngine(f domain.PageFetcher, x domain.Extractor, s domain.ReviewStore, r domain.Reporter, cfg EngineConfig) *Engine {
	if cfg.EmptyPageThreshold < 1 {
		cfg.EmptyPageThreshold = 1
	}
	if r == nil {
		r = nopReporter{}
	}
	return &Engine{
		fetcher:   f,
		extractor: x,
		store:     s,
		reporter:  r,
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// WithClock replaces the wall clock used for scraped_at. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RunTarget never returns an error: every failure ends up in the outcome.
// The index is mutated in place and only after a successful append.
// A fetch failure after page 1 ends the target as success with a warning,
// even when no review was new, so resuming a fully known target never fails.
func (e *Engine) RunTarget(ctx context.Context, t domain.Target, idx *domain.IdentityIndex) domain.TargetOutcome {
	var (
		out   = domain.TargetOutcome{Status: domain.StatusSuccess}
		empty int
		lg    = log.With().Str("target", t.Identifier).Str("key", t.OutputKey).Logger()
	)
	if idx == nil {
		idx = domain.NewIdentityIndex()
	}

	for page := 1; ; page++ {
		if e.cfg.MaxPages > 0 && page > e.cfg.MaxPages {
			lg.Info().Int("max_pages", e.cfg.MaxPages).Msg("page cap reached")
			break
		}
		if page > 1 && !e.sleep(ctx, e.cfg.PageDelay) {
			return interrupted(ctx, out)
		}
		if ctx.Err() != nil {
			return interrupted(ctx, out)
		}

		// FETCHING
		p, err := e.fetcher.FetchPage(ctx, t.SourceURL, page)
		out.Pages++
		if err != nil {
			if ctx.Err() != nil {
				return interrupted(ctx, out)
			}
			observability.ObservePage("failed")
			if page == 1 {
				out.Status, out.Err = domain.StatusFailed, err
				return out
			}
			// partial results stay valid; the rest of this target is skipped
			lg.Warn().Err(err).Int("page", page).Msg("fetch failed after first page, keeping partial results")
			out.Warning = err
			break
		}

		// EXTRACTING
		ex, err := e.extractor.Extract(p.Content)
		if err != nil {
			lg.Warn().Err(err).Int("page", page).Msg("page payload unreadable, treating as empty")
			observability.ObservePage("unreadable")
			ex = domain.Extraction{}
		}
		if len(ex.Records) == 0 {
			empty++
			observability.ObservePage("empty")
		} else {
			empty = 0
			observability.ObservePage("ok")
		}

		// FILTERING
		pageNew := 0
		for i, raw := range ex.Records {
			scraped := e.stamp()
			r, err := NormalizeReview(raw, t.Identifier, p.URL, scraped)
			if err != nil {
				out.Malformed++
				observability.ObserveReview("malformed")
				lg.Warn().Err(err).Int("page", page).Int("record", i).Msg("skipping malformed review")
				continue
			}
			fp := r.Fingerprint()
			if idx.Has(fp) {
				out.Duplicates++
				observability.ObserveReview("duplicate")
				continue
			}
			// a page in progress is finished even when cancellation arrives mid-way
			if err := e.store.Append(context.WithoutCancel(ctx), t.OutputKey, r); err != nil {
				var se *domain.StoreError
				if !errors.As(err, &se) {
					err = &domain.StoreError{Key: t.OutputKey, Op: "append", Err: err}
				}
				lg.Error().Err(err).Msg("cannot persist review, stopping target")
				out.Status, out.Err = domain.StatusFailed, err
				return out
			}
			idx.Add(fp)
			pageNew++
			out.NewReviews++
			observability.ObserveReview("new")
		}

		e.reporter.Report(domain.Event{
			Kind:       domain.EventPageDone,
			Target:     t.Identifier,
			Key:        t.OutputKey,
			Page:       page,
			Extracted:  len(ex.Records),
			NewReviews: pageNew,
			TotalNew:   out.NewReviews,
		})

		// termination
		if empty >= e.cfg.EmptyPageThreshold {
			lg.Debug().Int("page", page).Int("empty_pages", empty).Msg("pagination exhausted")
			break
		}
		if ex.LastPage {
			lg.Debug().Int("page", page).Msg("last page reached")
			break
		}
	}
	return out
}

// stamp returns the current UTC time, never earlier than any stamp it
// returned before.
func (e *Engine) stamp() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.now().UTC()
	if t.Before(e.lastScraped) {
		return e.lastScraped
	}
	e.lastScraped = t
	return t
}

func interrupted(ctx context.Context, out domain.TargetOutcome) domain.TargetOutcome {
	out.Status = domain.StatusFailed
	out.Err = fmt.Errorf("interrupted: %w", context.Cause(ctx))
	return out
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type nopReporter struct{}

func (nopReporter) Report(domain.Event) {}
