package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/minima-lms/minima-api/internal/repository"
)

// StatsService serves the score distribution shown in final session views.
// The aggregate is cached because every learner reaching FINAL requests it.
type StatsService interface {
	ItemStats(ctx context.Context, itemID string) (repository.ScoreStats, error)
}

type statsService struct {
	grades   repository.GradeRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewStatsService builds the stats aggregator. cache may be nil.
func NewStatsService(grades repository.GradeRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StatsService {
	return &statsService{
		grades:   grades,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "stats_service").Logger(),
	}
}

func (s *statsService) ItemStats(ctx context.Context, itemID string) (repository.ScoreStats, error) {
	cacheKey := fmt.Sprintf("stats:item:%s", itemID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var stats repository.ScoreStats
			if unmarshalErr := json.Unmarshal([]byte(cached), &stats); unmarshalErr == nil {
				s.logger.Debug().Str("item_id", itemID).Msg("stats cache hit")
				return stats, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read stats cache")
		}
	}

	stats, err := s.grades.Stats(ctx, itemID)
	if err != nil {
		return repository.ScoreStats{}, err
	}

	if s.cache != nil {
		payload, err := json.Marshal(stats)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store stats cache")
			}
		}
	}

	return stats, nil
}
