package services_test

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/internal/domain/providers"
	"github.com/patientvoice/backend/internal/domain/repositories"
)

// MockCacheProvider is an in-memory CacheProvider. Setting failing makes every call error.
type MockCacheProvider struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    int
	failing bool
}

func NewMockCacheProvider() *MockCacheProvider {
	return &MockCacheProvider{data: make(map[string][]byte)}
}

var errCacheDown = errors.New("cache unavailable")

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, errCacheDown
	}
	if val, ok := m.data[key]; ok {
		return val, nil
	}
	return nil, providers.ErrCacheMiss
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errCacheDown
	}
	m.data[key] = value
	m.sets++
	return nil
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheProvider) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *MockCacheProvider) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return 0, errCacheDown
	}
	current, _ := strconv.ParseInt(string(m.data[key]), 10, 64)
	current++
	m.data[key] = []byte(strconv.FormatInt(current, 10))
	return current, nil
}

func (m *MockCacheProvider) setFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

func (m *MockCacheProvider) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// MockSurveyRepository is a testify mock of repositories.SurveyRepository.
type MockSurveyRepository struct {
	mock.Mock
}

func (m *MockSurveyRepository) Create(ctx context.Context, response *entities.SurveyResponse) error {
	args := m.Called(ctx, response)
	return args.Error(0)
}

func (m *MockSurveyRepository) GetByID(ctx context.Context, id string) (*entities.SurveyResponse, error) {
	args := m.Called(ctx, id)
	response, _ := args.Get(0).(*entities.SurveyResponse)
	return response, args.Error(1)
}

func (m *MockSurveyRepository) List(ctx context.Context, filter repositories.SurveyFilter, limit, offset int) ([]*entities.SurveyResponse, int, error) {
	args := m.Called(ctx, filter, limit, offset)
	responses, _ := args.Get(0).([]*entities.SurveyResponse)
	return responses, args.Int(1), args.Error(2)
}

// MockSurveyStatsRepository is a testify mock of repositories.SurveyStatsRepository.
type MockSurveyStatsRepository struct {
	mock.Mock
}

func (m *MockSurveyStatsRepository) QuestionStats(ctx context.Context, filter repositories.SurveyFilter) ([]entities.QuestionStat, error) {
	args := m.Called(ctx, filter)
	stats, _ := args.Get(0).([]entities.QuestionStat)
	return stats, args.Error(1)
}

func (m *MockSurveyStatsRepository) OverallStats(ctx context.Context, filter repositories.SurveyFilter) (*entities.OverallStats, error) {
	args := m.Called(ctx, filter)
	stats, _ := args.Get(0).(*entities.OverallStats)
	return stats, args.Error(1)
}

func (m *MockSurveyStatsRepository) ScoreDistribution(ctx context.Context, filter repositories.SurveyFilter) ([]*entities.QuestionDistribution, error) {
	args := m.Called(ctx, filter)
	distributions, _ := args.Get(0).([]*entities.QuestionDistribution)
	return distributions, args.Error(1)
}

// MockStatsQueryLogRepository is a testify mock of repositories.StatsQueryLogRepository.
type MockStatsQueryLogRepository struct {
	mock.Mock
}

func (m *MockStatsQueryLogRepository) LogQuery(ctx context.Context, entry *entities.StatsQueryLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockStatsQueryLogRepository) ListRecent(ctx context.Context, filter repositories.StatsQueryLogFilter) ([]*entities.StatsQueryLog, error) {
	args := m.Called(ctx, filter)
	entries, _ := args.Get(0).([]*entities.StatsQueryLog)
	return entries, args.Error(1)
}
