// Package storage selects the review store backend from configuration.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"review_harvester/internal/domain"
	"review_harvester/internal/shared"
	"review_harvester/internal/storage/jsonl"
	mysqlrepo "review_harvester/internal/storage/mysql"
)

// Backend is a store the harvester appends to and the API reads from.
type Backend interface {
	domain.ReviewStore
	domain.ReviewReader
}

// Ext is the file extension of output keys.
const Ext = ".jsonl"

// Open returns the configured backend and a func releasing it.
func Open(ctx context.Context, cfg shared.Config) (Backend, func(), error) {
	switch cfg.StoreBackend {
	case "", "jsonl":
		log.Info().Str("dir", cfg.OutputDir).Msg("using jsonl store")
		return jsonl.New(cfg.OutputDir), func() {}, nil

	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("sql.Open: %w", err)
		}
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("db.Ping: %w", err)
		}
		log.Info().Msg("database connection ok")
		return mysqlrepo.New(db), func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q (want jsonl or mysql)", cfg.StoreBackend)
	}
}
