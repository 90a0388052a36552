package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"review_harvester/internal/adapters/observability"
	redisad "review_harvester/internal/adapters/redis"
	"review_harvester/internal/adapters/trustpilot"
	"review_harvester/internal/app"
	"review_harvester/internal/domain"
	"review_harvester/internal/shared"
	"review_harvester/internal/storage"
	"review_harvester/internal/storage/jsonl"
)

func runHarvest(ctx context.Context, out io.Writer, cfg shared.Config, company, companiesFile string) error {
	ids, err := app.LoadIdentifiers(company, companiesFile, ".")
	if err != nil {
		return &exitError{code: ExitConfigError, err: err}
	}

	resolver, err := app.NewResolver(cfg.SiteBase, storage.Ext)
	if err != nil {
		return &exitError{code: ExitConfigError, err: err}
	}

	store, release, err := storage.Open(ctx, cfg)
	if err != nil {
		return &exitError{code: ExitFatal, err: err}
	}
	defer release()

	observability.Serve(cfg.MetricsAddr)

	reporter := observability.NewLogReporter(log.Logger, 256)
	defer reporter.Close()

	fetcher := trustpilot.New(trustpilot.Options{
		UserAgent:     cfg.Fetch.UserAgent,
		Timeout:       cfg.Fetch.Timeout,
		MaxAttempts:   cfg.Fetch.MaxAttempts,
		Backoff:       cfg.Fetch.Backoff,
		RPS:           cfg.Fetch.RPS,
		RespectRobots: cfg.Fetch.RespectRobots,
	})
	engine := app.NewEngine(fetcher, trustpilot.Extractor{}, store, reporter, app.EngineConfig{
		EmptyPageThreshold: cfg.Harvest.EmptyPageThreshold,
		PageDelay:          cfg.Harvest.PageDelay,
		MaxPages:           cfg.Harvest.MaxPages,
	})
	sink := func(s *domain.RunSummary) error { return jsonl.WriteSummary(cfg.SummaryPath, s) }
	orch := app.NewOrchestrator(resolver, store, engine, reporter, sink, cfg.Harvest.TargetDelay)

	if cache := connectCache(ctx, cfg); cache != nil {
		defer cache.Close()
		q := app.NewQueryService(store, cache, cfg.CacheTTL, nil)
		orch.OnAppended(q.InvalidateReviews)
	}

	log.Info().
		Int("companies", len(ids)).
		Str("store", cfg.StoreBackend).
		Int("empty_page_threshold", cfg.Harvest.EmptyPageThreshold).
		Msg("harvest starting")

	summary, err := orch.Run(ctx, ids)
	reporter.Close()

	switch {
	case errors.Is(err, app.ErrNoTargets):
		observability.RenderSummary(out, summary)
		return &exitError{code: ExitConfigError, err: err}
	case err != nil:
		return &exitError{code: ExitFatal, err: err}
	}

	observability.RenderSummary(out, summary)
	if ctx.Err() != nil {
		log.Warn().Msg("harvest interrupted; summary covers completed companies only")
	}
	fmt.Fprintf(out, "summary written to %s\n", cfg.SummaryPath)
	return nil
}

// connectCache returns nil when no cache is reachable; the harvest does not
// depend on it.
func connectCache(ctx context.Context, cfg shared.Config) *redisad.Cache {
	if cfg.RedisAddr == "" {
		return nil
	}
	c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	pctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.Ping(pctx); err != nil {
		log.Debug().Err(err).Str("addr", cfg.RedisAddr).Msg("cache unavailable, skipping invalidation")
		_ = c.Close()
		return nil
	}
	return c
}
