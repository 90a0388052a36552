package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	server "review_harvester/internal/adapters/http_server"
	"review_harvester/internal/adapters/observability"
	redisad "review_harvester/internal/adapters/redis"
	"review_harvester/internal/app"
	"review_harvester/internal/domain"
	"review_harvester/internal/shared"
	"review_harvester/internal/storage"
	"review_harvester/internal/storage/jsonl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	// store
	store, release, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open review store failed")
	}
	defer release()

	// deps
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := cache.Ping(pctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, serving uncached")
	}
	cancel()

	loadSummary := func() (*domain.RunSummary, error) { return jsonl.ReadSummary(cfg.SummaryPath) }
	q := app.NewQueryService(store, cache, cfg.CacheTTL, loadSummary)

	// http
	srv := server.New(15 * time.Second)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, Ext: storage.Ext})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("API shutting down")
		return httpSrv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("http server failed")
		os.Exit(1)
	}
}
