package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"review_harvester/internal/domain"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// SummaryLoader returns the latest persisted run summary.
type SummaryLoader func() (*domain.RunSummary, error)

type QueryService struct {
	reader   domain.ReviewReader
	cache    domain.Cache
	cacheTTL time.Duration
	summary  SummaryLoader
}

func NewQueryService(r domain.ReviewReader, c domain.Cache, ttl time.Duration, summary SummaryLoader) *QueryService {
	return &QueryService{reader: r, cache: c, cacheTTL: ttl, summary: summary}
}

func reviewsCacheKey(key string, limit int) string {
	return fmt.Sprintf("%s%d", reviewsCachePrefix(key), limit)
}

func reviewsCachePrefix(key string) string {
	return fmt.Sprintf("reviews:%s:", key)
}

func (s *QueryService) ListReviews(ctx context.Context, key string, limit int) (domain.ReviewsPage, error) {
	ck := reviewsCacheKey(key, limit)
	var out domain.ReviewsPage
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, ck, &out); ok {
			return out, nil
		}
	}

	rs, err := s.reader.List(ctx, key, limit)
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy slice to avoid aliasing the reader's backing array
	copyRS := deepCopyReviewsPage(rs)

	// optional size guard
	if s.cache != nil {
		if b, _ := json.Marshal(copyRS); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, ck, copyRS, s.cacheTTL)
		}
	}
	return copyRS, nil
}

// InvalidateReviews evicts every cached list of key, whatever its limit.
// The harvester calls it after appending to a target.
func (s *QueryService) InvalidateReviews(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DelPrefix(ctx, reviewsCachePrefix(key)); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache invalidation failed")
	}
}

func (s *QueryService) Summary(ctx context.Context) (*domain.RunSummary, error) {
	if s.summary == nil {
		return nil, domain.ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.summary()
}

func deepCopyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	out := domain.ReviewsPage{Total: in.Total, Items: []domain.Review{}}
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.Review, n)
		copy(out.Items, in.Items)
	}
	return out
}
