package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"review_harvester/internal/adapters/observability"
	"review_harvester/internal/domain"
)

var (
	ErrNoTargets    = errors.New("no valid targets")
	ErrSummaryWrite = errors.New("cannot write run summary")
)

// SummarySink persists the run summary once, at the end of a run.
type SummarySink func(*domain.RunSummary) error

// Orchestrator runs targets one after another and owns the run summary.
type Orchestrator struct {
	resolver    *Resolver
	store       domain.ReviewStore
	engine      *Engine
	reporter    domain.Reporter
	sink        SummarySink
	targetDelay time.Duration
	onAppended  func(ctx context.Context, key string)

	now   func() time.Time
	newID func() string
	sleep func(ctx context.Context, d time.Duration) bool
}

func NewOrchestrator(res *Resolver, store domain.ReviewStore, engine *Engine, rep domain.Reporter, sink SummarySink, targetDelay time.Duration) *Orchestrator {
	if rep == nil {
		rep = nopReporter{}
	}
	return &Orchestrator{
		resolver:    res,
		store:       store,
		engine:      engine,
		reporter:    rep,
		sink:        sink,
		targetDelay: targetDelay,
		now:         time.Now,
		newID:       uuid.NewString,
		sleep:       sleepCtx,
	}
}

// OnAppended registers fn to run after a target gained new reviews.
func (o *Orchestrator) OnAppended(fn func(ctx context.Context, key string)) *Orchestrator {
	o.onAppended = fn
	return o
}

// Run harvests every identifier in input order. A failing target never
// stops the run; only a missing target list or an unwritable summary
// is returned as an error. On cancellation the remaining targets are
// skipped and the summary of what was done is still written.
func (o *Orchestrator) Run(ctx context.Context, identifiers []string) (*domain.RunSummary, error) {
	summary := domain.NewRunSummary(o.newID(), o.now().UTC())
	lg := log.With().Str("run_id", summary.RunID).Logger()

	targets, invalid := o.resolver.ResolveAll(identifiers)
	for _, inv := range invalid {
		o.reporter.Report(domain.Event{Kind: domain.EventInvalidTarget, Target: inv.Identifier, Err: errors.New(inv.Error)})
	}
	summary.Invalid = invalid
	if len(targets) == 0 {
		return summary, ErrNoTargets
	}

	o.reporter.Report(domain.Event{Kind: domain.EventRunStarted, Total: len(targets)})

	for i, t := range targets {
		if ctx.Err() != nil {
			lg.Warn().Int("skipped", len(targets)-i).Msg("run interrupted, remaining targets skipped")
			break
		}
		o.reporter.Report(domain.Event{Kind: domain.EventTargetStarted, Target: t.Identifier, Key: t.OutputKey, Index: i + 1, Total: len(targets)})

		outcome := o.runOne(ctx, t)

		ts := domain.TargetSummary{
			Company:    t.Identifier,
			NewReviews: outcome.NewReviews,
			OutputFile: o.store.Location(t.OutputKey),
			Status:     outcome.Status,
		}
		if outcome.Err != nil {
			ts.Error = outcome.Err.Error()
		}
		if outcome.Warning != nil {
			ts.Warning = outcome.Warning.Error()
		}
		summary.Record(t.OutputKey, ts)
		if outcome.NewReviews > 0 && o.onAppended != nil {
			o.onAppended(context.WithoutCancel(ctx), t.OutputKey)
		}
		observability.ObserveTarget(string(outcome.Status))

		o.reporter.Report(domain.Event{
			Kind:       domain.EventTargetDone,
			Target:     t.Identifier,
			Key:        t.OutputKey,
			Index:      i + 1,
			Total:      len(targets),
			NewReviews: outcome.NewReviews,
			Status:     outcome.Status,
			Err:        outcome.Err,
		})

		if i < len(targets)-1 && !o.sleep(ctx, o.targetDelay) {
			lg.Warn().Int("skipped", len(targets)-i-1).Msg("run interrupted, remaining targets skipped")
			break
		}
	}

	summary.CompletedAt = o.now().UTC()
	o.reporter.Report(domain.Event{Kind: domain.EventRunDone, Total: summary.TotalTargets, TotalNew: summary.TotalNewReviews})

	if o.sink != nil {
		if err := o.sink(summary); err != nil {
			return summary, fmt.Errorf("%w: %v", ErrSummaryWrite, err)
		}
	}
	return summary, nil
}

func (o *Orchestrator) runOne(ctx context.Context, t domain.Target) domain.TargetOutcome {
	idx, existing, err := o.store.Load(ctx, t.OutputKey)
	if err != nil {
		if ctx.Err() != nil {
			return interrupted(ctx, domain.TargetOutcome{})
		}
		return domain.TargetOutcome{Status: domain.StatusFailed, Err: err}
	}
	o.reporter.Report(domain.Event{Kind: domain.EventStoreLoaded, Target: t.Identifier, Key: t.OutputKey, Existing: existing})
	return o.engine.RunTarget(ctx, t, idx)
}
