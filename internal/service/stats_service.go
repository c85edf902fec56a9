package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-pickup-api/internal/models"
	appErrors "github.com/noah-isme/sma-pickup-api/pkg/errors"
)

type statsRepository interface {
	StatsForRange(ctx context.Context, from, to time.Time) (*models.PickupStats, error)
}

// statsCacheKeyPrefix namespaces cached daily stats; pickup writes invalidate
// the whole namespace.
const statsCacheKeyPrefix = "pickup:stats:"

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StatsService serves daily pickup traffic summaries, cached in Redis. Pickup
// writes invalidate the cache; the TTL is a backstop for missed invalidations.
type StatsService struct {
	repo   statsRepository
	cache  statsCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatsService constructs the stats service. A nil cache disables caching.
func NewStatsService(repo statsRepository, cache statsCache, ttl time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatsService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// ForDay returns pickup counts for the calendar day containing the given time.
func (s *StatsService) ForDay(ctx context.Context, day time.Time) (*models.PickupStats, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	key := statsCacheKeyPrefix + dayStart.Format("2006-01-02")

	if s.cache != nil {
		var cached models.PickupStats
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("stats cache lookup failed", zap.String("key", key), zap.Error(err))
		}
	}

	stats, err := s.repo.StatsForRange(ctx, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute pickup stats")
	}
	stats.Date = dayStart.Format("2006-01-02")

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.ttl); err != nil {
			s.logger.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return stats, nil
}
