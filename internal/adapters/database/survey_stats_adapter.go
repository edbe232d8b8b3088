package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/internal/domain/repositories"
	"github.com/patientvoice/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/patientvoice/backend/pkg/errors"
)

// meanOfResponseAveragesSQL averages every response first and then averages those means.
// %s is the filter fragment over alias r.
const meanOfResponseAveragesSQL = `
WITH per_response AS (
    SELECT a.response_id, AVG(a.score)::float8 AS response_avg
    FROM survey_likert_answers a
    JOIN survey_responses r ON r.id = a.response_id
    WHERE %s
    GROUP BY a.response_id
)
SELECT AVG(response_avg)::float8, COUNT(*) FROM per_response`

// SurveyStatsAdapter computes the Likert aggregations in Postgres.
type SurveyStatsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSurveyStatsAdapter creates a new statistics adapter.
func NewSurveyStatsAdapter(client *postgres.Client) repositories.SurveyStatsRepository {
	return &SurveyStatsAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// answersJoin selects from the answers joined to their responses; the filter applies to alias r.
func (a *SurveyStatsAdapter) answersJoin(filter repositories.SurveyFilter) *goqu.SelectDataset {
	return a.db.From(goqu.T(likertAnswersTable).As("a")).
		Join(goqu.T(surveyResponsesTable).As("r"), goqu.On(goqu.I("r.id").Eq(goqu.I("a.response_id")))).
		Where(filterExpression(filter, "r")).
		Prepared(true)
}

// QuestionStats returns the average score and answer count per question, ordered by question.
func (a *SurveyStatsAdapter) QuestionStats(ctx context.Context, filter repositories.SurveyFilter) ([]entities.QuestionStat, error) {
	query, args, err := a.answersJoin(filter).
		Select(
			goqu.I("a.question_no"),
			goqu.Cast(goqu.AVG("a.score"), "DOUBLE PRECISION").As("avg_score"),
			goqu.COUNT("a.id").As("count_answers"),
		).
		GroupBy(goqu.I("a.question_no")).
		Order(goqu.I("a.question_no").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build question stats query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query question stats", err)
	}
	defer rows.Close()

	stats := []entities.QuestionStat{}
	for rows.Next() {
		var stat entities.QuestionStat
		var avg sql.NullFloat64
		if err := rows.Scan(&stat.QuestionNo, &avg, &stat.CountAnswers); err != nil {
			return nil, apperrors.NewStorageError("failed to scan question stat", err)
		}
		stat.AvgScore = floatPtr(avg)
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to iterate question stats", err)
	}
	return stats, nil
}

// OverallStats runs its three statements in one read-only repeatable-read transaction so that
// every figure is computed from the same snapshot.
func (a *SurveyStatsAdapter) OverallStats(ctx context.Context, filter repositories.SurveyFilter) (*entities.OverallStats, error) {
	weightedQuery, weightedArgs, err := a.answersJoin(filter).
		Select(
			goqu.Cast(goqu.AVG("a.score"), "DOUBLE PRECISION").As("weighted_avg"),
			goqu.COUNT("a.id").As("total_answers"),
		).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build weighted average query", err)
	}

	responsesQuery, responsesArgs, err := a.answersJoin(filter).
		Select(goqu.L("COUNT(DISTINCT ?)", goqu.I("a.response_id")).As("total_responses")).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build response count query", err)
	}

	where, meanArgs := filterWhereSQL(filter, "r", 1)
	meanQuery := fmt.Sprintf(meanOfResponseAveragesSQL, where)

	tx, err := a.client.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, apperrors.NewStorageError("failed to begin statistics transaction", err)
	}
	defer tx.Rollback()

	stats := &entities.OverallStats{}
	var weighted, mean sql.NullFloat64

	if err := tx.QueryRowContext(ctx, weightedQuery, weightedArgs...).Scan(&weighted, &stats.TotalAnswers); err != nil {
		return nil, apperrors.NewStorageError("failed to compute weighted average", err)
	}
	if err := tx.QueryRowContext(ctx, responsesQuery, responsesArgs...).Scan(&stats.TotalResponsesWithLikert); err != nil {
		return nil, apperrors.NewStorageError("failed to count responses with answers", err)
	}
	if err := tx.QueryRowContext(ctx, meanQuery, meanArgs...).Scan(&mean, &stats.AveragedResponses); err != nil {
		return nil, apperrors.NewStorageError("failed to compute mean of response averages", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewStorageError("failed to finish statistics transaction", err)
	}

	stats.WeightedAvgScore = floatPtr(weighted)
	stats.MeanOfResponseAverages = floatPtr(mean)
	return stats, nil
}

// ScoreDistribution counts matching answers per question and score.
func (a *SurveyStatsAdapter) ScoreDistribution(ctx context.Context, filter repositories.SurveyFilter) ([]*entities.QuestionDistribution, error) {
	query, args, err := a.answersJoin(filter).
		Select(goqu.I("a.question_no"), goqu.I("a.score"), goqu.COUNT("a.id").As("answers")).
		GroupBy(goqu.I("a.question_no"), goqu.I("a.score")).
		Order(goqu.I("a.question_no").Asc(), goqu.I("a.score").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build score distribution query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query score distribution", err)
	}
	defer rows.Close()

	distributions := []*entities.QuestionDistribution{}
	var current *entities.QuestionDistribution
	for rows.Next() {
		var questionNo, score int
		var count int64
		if err := rows.Scan(&questionNo, &score, &count); err != nil {
			return nil, apperrors.NewStorageError("failed to scan score distribution", err)
		}
		if current == nil || current.QuestionNo != questionNo {
			current = entities.NewQuestionDistribution(questionNo)
			distributions = append(distributions, current)
		}
		current.Add(score, count)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to iterate score distribution", err)
	}
	return distributions, nil
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}
