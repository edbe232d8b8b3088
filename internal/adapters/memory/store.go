// Package memory is a process-local storage engine used for DB_DRIVER=memory and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/internal/domain/repositories"
	apperrors "github.com/patientvoice/backend/pkg/errors"
)

// Store keeps responses and audit entries in memory. It satisfies the survey, stats and
// stats query log repositories.
type Store struct {
	mu        sync.RWMutex
	responses []*entities.SurveyResponse
	byID      map[string]*entities.SurveyResponse
	queryLogs []*entities.StatsQueryLog
}

var (
	_ repositories.SurveyRepository        = (*Store)(nil)
	_ repositories.SurveyStatsRepository   = (*Store)(nil)
	_ repositories.StatsQueryLogRepository = (*Store)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*entities.SurveyResponse)}
}

// Create stores a copy of the response. A duplicate id or question number is rejected
// without storing anything.
func (s *Store) Create(_ context.Context, response *entities.SurveyResponse) error {
	if response == nil {
		return apperrors.NewInternalError("survey response is nil", fmt.Errorf("survey response is nil"))
	}

	seen := make(map[int]bool, len(response.LikertAnswers))
	for _, answer := range response.LikertAnswers {
		if seen[answer.QuestionNo] {
			return apperrors.NewStorageError("failed to create likert answers",
				fmt.Errorf("duplicate answer for question %d", answer.QuestionNo))
		}
		seen[answer.QuestionNo] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[response.ID]; exists {
		return apperrors.NewStorageError("failed to create survey response",
			fmt.Errorf("duplicate id %s", response.ID))
	}

	stored := cloneResponse(response)
	s.responses = append(s.responses, stored)
	s.byID[stored.ID] = stored
	return nil
}

// GetByID returns a copy of the response.
func (s *Store) GetByID(_ context.Context, id string) (*entities.SurveyResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	response, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("survey response with id %s not found", id))
	}
	return cloneResponse(response), nil
}

// List returns matching responses newest first.
func (s *Store) List(_ context.Context, filter repositories.SurveyFilter, limit, offset int) ([]*entities.SurveyResponse, int, error) {
	matching := s.matching(filter)
	sort.SliceStable(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].ID < matching[j].ID
		}
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})

	total := len(matching)
	page := []*entities.SurveyResponse{}
	for i := offset; i < total && len(page) < limit; i++ {
		page = append(page, cloneResponse(matching[i]))
	}
	return page, total, nil
}

// QuestionStats groups matching answers by question number.
func (s *Store) QuestionStats(_ context.Context, filter repositories.SurveyFilter) ([]entities.QuestionStat, error) {
	sums := map[int]int64{}
	counts := map[int]int64{}
	for _, response := range s.matching(filter) {
		for _, answer := range response.LikertAnswers {
			sums[answer.QuestionNo] += int64(answer.Score)
			counts[answer.QuestionNo]++
		}
	}

	stats := make([]entities.QuestionStat, 0, len(counts))
	for questionNo, count := range counts {
		avg := float64(sums[questionNo]) / float64(count)
		stats = append(stats, entities.QuestionStat{QuestionNo: questionNo, AvgScore: &avg, CountAnswers: count})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].QuestionNo < stats[j].QuestionNo })
	return stats, nil
}

// OverallStats computes both averages from one read-locked view of the data.
func (s *Store) OverallStats(_ context.Context, filter repositories.SurveyFilter) (*entities.OverallStats, error) {
	stats := &entities.OverallStats{}
	var scoreSum int64
	var meanSum float64

	for _, response := range s.matching(filter) {
		if len(response.LikertAnswers) == 0 {
			continue
		}
		var responseSum int64
		for _, answer := range response.LikertAnswers {
			responseSum += int64(answer.Score)
		}
		scoreSum += responseSum
		stats.TotalAnswers += int64(len(response.LikertAnswers))
		stats.TotalResponsesWithLikert++
		meanSum += float64(responseSum) / float64(len(response.LikertAnswers))
	}
	stats.AveragedResponses = stats.TotalResponsesWithLikert

	if stats.TotalAnswers > 0 {
		weighted := float64(scoreSum) / float64(stats.TotalAnswers)
		stats.WeightedAvgScore = &weighted
	}
	if stats.TotalResponsesWithLikert > 0 {
		mean := meanSum / float64(stats.TotalResponsesWithLikert)
		stats.MeanOfResponseAverages = &mean
	}
	return stats, nil
}

// ScoreDistribution counts matching answers per question and score.
func (s *Store) ScoreDistribution(_ context.Context, filter repositories.SurveyFilter) ([]*entities.QuestionDistribution, error) {
	byQuestion := map[int]*entities.QuestionDistribution{}
	for _, response := range s.matching(filter) {
		for _, answer := range response.LikertAnswers {
			distribution, ok := byQuestion[answer.QuestionNo]
			if !ok {
				distribution = entities.NewQuestionDistribution(answer.QuestionNo)
				byQuestion[answer.QuestionNo] = distribution
			}
			distribution.Add(answer.Score, 1)
		}
	}

	distributions := make([]*entities.QuestionDistribution, 0, len(byQuestion))
	for _, distribution := range byQuestion {
		distributions = append(distributions, distribution)
	}
	sort.Slice(distributions, func(i, j int) bool {
		return distributions[i].QuestionNo < distributions[j].QuestionNo
	})
	return distributions, nil
}

// LogQuery appends an audit entry.
func (s *Store) LogQuery(_ context.Context, entry *entities.StatsQueryLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	copied := *entry
	copied.AdmissionTypes = append([]string(nil), entry.AdmissionTypes...)

	s.mu.Lock()
	s.queryLogs = append(s.queryLogs, &copied)
	s.mu.Unlock()
	return nil
}

// ListRecent returns audit entries newest first.
func (s *Store) ListRecent(_ context.Context, filter repositories.StatsQueryLogFilter) ([]*entities.StatsQueryLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := []*entities.StatsQueryLog{}
	for i := len(s.queryLogs) - 1; i >= 0 && len(entries) < limit; i-- {
		entry := s.queryLogs[i]
		if filter.From != nil && entry.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && entry.CreatedAt.After(*filter.To) {
			continue
		}
		if filter.Station != nil && (entry.Station == nil || *entry.Station != *filter.Station) {
			continue
		}
		copied := *entry
		entries = append(entries, &copied)
	}
	return entries, nil
}

// matching returns the stored responses accepted by filter. The slice is a snapshot;
// the responses themselves are never mutated after Create.
func (s *Store) matching(filter repositories.SurveyFilter) []*entities.SurveyResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.SurveyResponse, 0, len(s.responses))
	for _, response := range s.responses {
		if filter.Matches(response) {
			out = append(out, response)
		}
	}
	return out
}

func cloneResponse(response *entities.SurveyResponse) *entities.SurveyResponse {
	copied := *response
	copied.AdmissionTypes = append([]string{}, response.AdmissionTypes...)
	copied.LikertAnswers = append([]entities.LikertAnswer{}, response.LikertAnswers...)
	return &copied
}
