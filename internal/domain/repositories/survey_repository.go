package repositories

import (
	"context"

	"github.com/patientvoice/backend/internal/domain/entities"
)

// SurveyRepository defines persistence for survey responses
type SurveyRepository interface {
	// Create stores the response and all of its Likert answers atomically
	Create(ctx context.Context, response *entities.SurveyResponse) error

	// GetByID retrieves a response with its answers ordered by question number
	GetByID(ctx context.Context, id string) (*entities.SurveyResponse, error)

	// List returns matching responses, newest first, and the total number of matches
	List(ctx context.Context, filter SurveyFilter, limit, offset int) ([]*entities.SurveyResponse, int, error)
}

// SurveyStatsRepository defines the read-only aggregations over Likert answers
type SurveyStatsRepository interface {
	// QuestionStats groups matching answers by question number
	QuestionStats(ctx context.Context, filter SurveyFilter) ([]entities.QuestionStat, error)

	// OverallStats computes the weighted average and the mean of per-response averages
	OverallStats(ctx context.Context, filter SurveyFilter) (*entities.OverallStats, error)

	// ScoreDistribution counts matching answers per question and score
	ScoreDistribution(ctx context.Context, filter SurveyFilter) ([]*entities.QuestionDistribution, error)
}
