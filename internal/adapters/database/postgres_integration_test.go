//go:build integration

package database

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/internal/domain/repositories"
	"github.com/patientvoice/backend/internal/infrastructure/clients/postgres"
	"github.com/patientvoice/backend/pkg/config"
	apperrors "github.com/patientvoice/backend/pkg/errors"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// newTestPostgresClient connects to TEST_DB_* and applies the migrations.
func newTestPostgresClient(t *testing.T) *postgres.Client {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST not set")
	}

	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "patient_survey_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	client, err := postgres.NewClient(cfg)
	require.NoError(t, err, "Failed to create postgres client")
	t.Cleanup(func() { client.Close() })

	_, err = postgres.NewMigrator(client.DB()).Up(context.Background())
	require.NoError(t, err)
	return client
}

func integrationResponse(station string, createdAt time.Time, scores ...int) *entities.SurveyResponse {
	response := &entities.SurveyResponse{
		ID:             uuid.NewString(),
		CreatedAt:      createdAt,
		Station:        station,
		Room:           "12",
		AdmissionTypes: []string{"GEPLANT"},
		ClientIP:       "203.0.113.7",
	}
	for i, score := range scores {
		option, _ := entities.ScoreToOption(score)
		response.LikertAnswers = append(response.LikertAnswers, entities.LikertAnswer{
			ID:         uuid.NewString(),
			ResponseID: response.ID,
			QuestionNo: i + 1,
			Score:      score,
			Option:     option,
		})
	}
	return response
}

func TestPostgres_SurveyRoundTrip(t *testing.T) {
	client := newTestPostgresClient(t)
	ctx := context.Background()
	adapter := NewSurveyAdapter(client)

	response := integrationResponse("it-"+uuid.NewString(), time.Now().UTC(), 5, 1, 3)
	require.NoError(t, adapter.Create(ctx, response))

	fetched, err := adapter.GetByID(ctx, response.ID)
	require.NoError(t, err)
	assert.Equal(t, response.Station, fetched.Station)
	assert.Equal(t, []string{"GEPLANT"}, fetched.AdmissionTypes)
	require.Len(t, fetched.LikertAnswers, 3)
	assert.Equal(t, entities.LikertVeryPoor, fetched.LikertAnswers[1].Option)

	_, err = adapter.GetByID(ctx, uuid.NewString())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestPostgres_StatsRespectFilter(t *testing.T) {
	client := newTestPostgresClient(t)
	ctx := context.Background()
	surveys := NewSurveyAdapter(client)
	stats := NewSurveyStatsAdapter(client)

	station := "it-" + uuid.NewString()
	june := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, surveys.Create(ctx, integrationResponse(station, june, 5, 5, 5)))
	require.NoError(t, surveys.Create(ctx, integrationResponse(station, june, 1)))
	require.NoError(t, surveys.Create(ctx, integrationResponse(station, june.AddDate(0, 2, 0), 2)))

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC)
	filter := repositories.NewSurveyFilter(repositories.SurveyFilterParams{From: &from, To: &to, Station: station})

	overall, err := stats.OverallStats(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(4), overall.TotalAnswers)
	assert.Equal(t, int64(2), overall.TotalResponsesWithLikert)
	assert.Equal(t, overall.TotalResponsesWithLikert, overall.AveragedResponses)
	require.NotNil(t, overall.WeightedAvgScore)
	assert.InDelta(t, 4.0, *overall.WeightedAvgScore, 1e-9)
	require.NotNil(t, overall.MeanOfResponseAverages)
	assert.InDelta(t, 3.0, *overall.MeanOfResponseAverages, 1e-9)

	questions, err := stats.QuestionStats(ctx, filter)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	assert.Equal(t, int64(2), questions[0].CountAnswers)

	distribution, err := stats.ScoreDistribution(ctx, filter)
	require.NoError(t, err)
	require.Len(t, distribution, 3)
	assert.Equal(t, int64(1), distribution[0].ByScore[1])
	assert.Equal(t, int64(1), distribution[0].ByScore[5])
}

func TestPostgres_QueryLog(t *testing.T) {
	client := newTestPostgresClient(t)
	ctx := context.Background()
	adapter := NewStatsQueryLogAdapter(client)

	station := "it-" + uuid.NewString()
	entry := &entities.StatsQueryLog{
		Method:         "GET",
		Path:           "/stats/overall",
		RawQuery:       "station=" + station,
		Station:        &station,
		AdmissionTypes: []string{"NOTFALL"},
		ClientIP:       "203.0.113.7",
		StatusCode:     200,
		DurationMs:     4,
	}
	require.NoError(t, adapter.LogQuery(ctx, entry))

	entries, err := adapter.ListRecent(ctx, repositories.StatsQueryLogFilter{Station: &station, Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"NOTFALL"}, entries[0].AdmissionTypes)
	assert.Equal(t, 200, entries[0].StatusCode)
}
