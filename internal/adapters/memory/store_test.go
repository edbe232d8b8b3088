package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/internal/domain/repositories"
	apperrors "github.com/patientvoice/backend/pkg/errors"
)

func response(id string, createdAt time.Time, station string, scores ...int) *entities.SurveyResponse {
	r := &entities.SurveyResponse{
		ID:             id,
		CreatedAt:      createdAt,
		Station:        station,
		Room:           "1",
		AdmissionTypes: []string{"GEPLANT"},
	}
	for i, score := range scores {
		option, _ := entities.ScoreToOption(score)
		r.LikertAnswers = append(r.LikertAnswers, entities.LikertAnswer{
			ID:         fmt.Sprintf("%s-%d", id, i+1),
			ResponseID: id,
			QuestionNo: i + 1,
			Score:      score,
			Option:     option,
		})
	}
	return r
}

func TestStore_OverallStatsDivergence(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now().UTC()

	allFives := make([]int, 30)
	for i := range allFives {
		allFives[i] = 5
	}
	require.NoError(t, store.Create(ctx, response("a", now, "1A", 1)))
	require.NoError(t, store.Create(ctx, response("b", now, "1A", allFives...)))

	stats, err := store.OverallStats(ctx, repositories.SurveyFilter{})
	require.NoError(t, err)

	assert.Equal(t, int64(31), stats.TotalAnswers)
	assert.Equal(t, int64(2), stats.TotalResponsesWithLikert)
	require.NotNil(t, stats.WeightedAvgScore)
	require.NotNil(t, stats.MeanOfResponseAverages)
	assert.InDelta(t, 151.0/31.0, *stats.WeightedAvgScore, 1e-9)
	assert.InDelta(t, 3.0, *stats.MeanOfResponseAverages, 1e-9)
	assert.Greater(t, *stats.WeightedAvgScore-*stats.MeanOfResponseAverages, 1.5)
}

func TestStore_EmptyStats(t *testing.T) {
	store := NewStore()

	stats, err := store.OverallStats(context.Background(), repositories.SurveyFilter{})
	require.NoError(t, err)
	assert.Nil(t, stats.WeightedAvgScore)
	assert.Nil(t, stats.MeanOfResponseAverages)
	assert.Zero(t, stats.TotalAnswers)

	questions, err := store.QuestionStats(context.Background(), repositories.SurveyFilter{})
	require.NoError(t, err)
	assert.NotNil(t, questions)
	assert.Empty(t, questions)
}

func TestStore_CreateRejectsDuplicateQuestion(t *testing.T) {
	store := NewStore()
	r := response("dup", time.Now(), "1A", 4, 5)
	r.LikertAnswers[1].QuestionNo = 1

	err := store.Create(context.Background(), r)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))

	_, err = store.GetByID(context.Background(), "dup")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestStore_GetByIDReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Create(ctx, response("r1", time.Now(), "1A", 3)))

	first, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	first.LikertAnswers[0].Score = 1

	second, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, second.LikertAnswers[0].Score)
}

func TestStore_ListNewestFirstWithPaging(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Create(ctx, response(fmt.Sprintf("r%d", i), base.Add(time.Duration(i)*time.Hour), "1A", 4)))
	}

	page, total, err := store.List(ctx, repositories.SurveyFilter{}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "r3", page[0].ID)
	assert.Equal(t, "r2", page[1].ID)
}

func TestStore_QueryLogs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	station := "3B"

	require.NoError(t, store.LogQuery(ctx, &entities.StatsQueryLog{Path: "/stats/overall"}))
	require.NoError(t, store.LogQuery(ctx, &entities.StatsQueryLog{Path: "/stats/questions", Station: &station}))

	all, err := store.ListRecent(ctx, repositories.StatsQueryLogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "/stats/questions", all[0].Path)
	assert.NotEmpty(t, all[0].ID)

	filtered, err := store.ListRecent(ctx, repositories.StatsQueryLogFilter{Station: &station})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "/stats/questions", filtered[0].Path)
}
