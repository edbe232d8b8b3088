package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/internal/domain/providers"
	"github.com/patientvoice/backend/internal/domain/repositories"
	"github.com/patientvoice/backend/internal/infrastructure/observability"
)

// statsGenerationKey is bumped after every stored response. Cached statistics are keyed by
// the generation they were computed in, so a bump retires all of them at once.
const statsGenerationKey = "stats:generation"

// statsLoadTimeout bounds a shared statistics query. It runs detached from the request
// that started it, so other waiters survive that request going away.
const statsLoadTimeout = 30 * time.Second

// SurveyStatsService computes Likert statistics, optionally through a cache.
type SurveyStatsService struct {
	repo    repositories.SurveyStatsRepository
	cache   providers.CacheProvider
	ttl     time.Duration
	metrics *observability.Metrics

	// flight collapses concurrent misses on the same cache key into one query
	flight singleflight.Group
}

// NewSurveyStatsService creates a new statistics service. A nil cache or a zero ttl
// disables caching.
func NewSurveyStatsService(repo repositories.SurveyStatsRepository, cache providers.CacheProvider, ttl time.Duration, metrics *observability.Metrics) *SurveyStatsService {
	return &SurveyStatsService{
		repo:    repo,
		cache:   cache,
		ttl:     ttl,
		metrics: metrics,
	}
}

// QuestionStats returns the per-question averages, ordered by question number.
func (s *SurveyStatsService) QuestionStats(ctx context.Context, filter repositories.SurveyFilter) ([]entities.QuestionStat, error) {
	return cached(ctx, s, "questions", filter, func(ctx context.Context) ([]entities.QuestionStat, error) {
		return s.repo.QuestionStats(ctx, filter)
	})
}

// OverallStats returns the answer-weighted average next to the mean of per-response averages.
func (s *SurveyStatsService) OverallStats(ctx context.Context, filter repositories.SurveyFilter) (*entities.OverallStats, error) {
	return cached(ctx, s, "overall", filter, func(ctx context.Context) (*entities.OverallStats, error) {
		stats, err := s.repo.OverallStats(ctx, filter)
		if err != nil {
			return nil, err
		}
		if stats.AveragedResponses != stats.TotalResponsesWithLikert {
			observability.LoggerFromContext(ctx).Error().
				Int64("averaged_responses", stats.AveragedResponses).
				Int64("total_responses_with_likert", stats.TotalResponsesWithLikert).
				Str("filter", filter.CacheKey()).
				Msg("overall statistics disagree on the number of matching responses")
		}
		return stats, nil
	})
}

// Distribution returns how often each score was given per question.
func (s *SurveyStatsService) Distribution(ctx context.Context, filter repositories.SurveyFilter) ([]*entities.QuestionDistribution, error) {
	return cached(ctx, s, "distribution", filter, func(ctx context.Context) ([]*entities.QuestionDistribution, error) {
		return s.repo.ScoreDistribution(ctx, filter)
	})
}

// Dashboard computes the question and overall statistics concurrently.
func (s *SurveyStatsService) Dashboard(ctx context.Context, filter repositories.SurveyFilter) (*entities.StatsDashboard, error) {
	dashboard := &entities.StatsDashboard{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		questions, err := s.QuestionStats(gctx, filter)
		if err != nil {
			return err
		}
		dashboard.Questions = questions
		return nil
	})
	g.Go(func() error {
		overall, err := s.OverallStats(gctx, filter)
		if err != nil {
			return err
		}
		dashboard.Overall = overall
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dashboard, nil
}

// Invalidate retires every cached statistic. Failures are logged; entries then expire by TTL.
func (s *SurveyStatsService) Invalidate(ctx context.Context) {
	if !s.cachingEnabled() {
		return
	}
	if _, err := s.cache.Incr(ctx, statsGenerationKey); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to bump stats cache generation")
	}
}

func (s *SurveyStatsService) cachingEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

func (s *SurveyStatsService) ttlSeconds() int {
	if seconds := int(s.ttl / time.Second); seconds > 0 {
		return seconds
	}
	return 1
}

func (s *SurveyStatsService) generation(ctx context.Context) (int64, error) {
	raw, err := s.cache.Get(ctx, statsGenerationKey)
	if errors.Is(err, providers.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

// cached serves endpoint from the cache when possible and stores freshly computed results.
// Any cache failure falls back to load. Concurrent misses on one key share a single load.
func cached[T any](ctx context.Context, s *SurveyStatsService, endpoint string, filter repositories.SurveyFilter, load func(context.Context) (T, error)) (T, error) {
	ctx, span := observability.StartSpan(ctx, "SurveyStatsService."+endpoint)
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("stats.filter", filter.CacheKey()))

	logger := observability.LoggerFromContext(ctx)
	var key string
	if s.cachingEnabled() {
		generation, err := s.generation(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("stats cache unavailable, querying storage")
		} else {
			key = fmt.Sprintf("stats:v%d:%s:%s", generation, endpoint, filter.CacheKey())
			if data, err := s.cache.Get(ctx, key); err == nil {
				var result T
				if err := json.Unmarshal(data, &result); err == nil {
					observability.RecordCacheHit(ctx, s.metrics, endpoint)
					return result, nil
				}
				logger.Warn().Str("key", key).Msg("discarding undecodable stats cache entry")
			} else if !errors.Is(err, providers.ErrCacheMiss) {
				logger.Warn().Err(err).Str("key", key).Msg("stats cache read failed")
			}
			observability.RecordCacheMiss(ctx, s.metrics, endpoint)
		}
	}

	compute := func(ctx context.Context) (T, error) {
		start := time.Now()
		result, err := load(ctx)
		observability.RecordDBMetric(ctx, s.metrics, "stats."+endpoint, time.Since(start))
		if err != nil {
			observability.RecordError(span, err)
			logger.Error().Err(err).Str("endpoint", endpoint).Msg("failed to compute statistics")
			return result, err
		}

		if key != "" {
			if data, err := json.Marshal(result); err == nil {
				if err := s.cache.Set(ctx, key, data, s.ttlSeconds()); err != nil {
					logger.Warn().Err(err).Str("key", key).Msg("stats cache write failed")
				}
			}
		}
		return result, nil
	}

	if key == "" {
		return compute(ctx)
	}

	shared := s.flight.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsLoadTimeout)
		defer cancel()
		return compute(loadCtx)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-shared:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
