// Package market owns the listing lifecycle, credential workflow, purchase
// transaction, wallet ledger and chat threads. Every operation takes the
// acting identity explicitly; nothing is read from ambient state.
package market

import (
	"context"
	"log/slog"
	"time"

	"flip-earn/internal/cache"
	"flip-earn/internal/imagestore"
	"flip-earn/internal/metrics"
	"flip-earn/internal/repo"
)

const maxListingImages = 5

// Config tunes the service.
type Config struct {
	// FreePlanListingLimit caps non-deleted listings per free-plan seller.
	FreePlanListingLimit int
	// PublicCacheTTL bounds staleness of the cached public feed.
	PublicCacheTTL time.Duration
}

// Service implements the marketplace operations on top of the store.
type Service struct {
	store   repo.Store
	images  imagestore.Uploader
	cache   *cache.Redis
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config
}

// New wires the service. cache may be nil (feed reads fall through to the
// store); metrics may be nil in tests.
func New(store repo.Store, images imagestore.Uploader, redis *cache.Redis, metricRegistry *metrics.Metrics, logger *slog.Logger, cfg Config) *Service {
	if cfg.FreePlanListingLimit <= 0 {
		cfg.FreePlanListingLimit = 5
	}
	if cfg.PublicCacheTTL <= 0 {
		cfg.PublicCacheTTL = time.Minute
	}
	return &Service{
		store:   store,
		images:  images,
		cache:   redis,
		metrics: metricRegistry,
		logger:  logger.With("component", "market"),
		cfg:     cfg,
	}
}

func (s *Service) invalidatePublicFeed(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cache.PublicListingsKey); err != nil {
		s.logger.Warn("invalidate public feed cache failed", "error", err)
	}
}

func (s *Service) countMutation(operation, status string) {
	if s.metrics != nil {
		s.metrics.ListingMutations.WithLabelValues(operation, status).Inc()
	}
}
