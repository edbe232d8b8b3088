package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patientvoice/backend/internal/adapters/memory"
	"github.com/patientvoice/backend/internal/application/services"
	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/internal/domain/repositories"
	apperrors "github.com/patientvoice/backend/pkg/errors"
	"github.com/patientvoice/backend/pkg/pagination"
)

func decode(t *testing.T, body string) *services.SubmitSurveyInput {
	t.Helper()
	input, err := services.DecodeSubmitSurveyInput([]byte(body))
	require.NoError(t, err)
	return input
}

func validationError(t *testing.T, err error) *apperrors.AppError {
	t.Helper()
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected an AppError, got %v", err)
	require.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
	return appErr
}

func TestSurveyService_SubmitAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	service := services.NewSurveyService(store, nil, nil)

	created, err := service.Submit(ctx, decode(t, `{
		"station": "3B",
		"room": "12",
		"admissionType": ["emergency"],
		"likertAnswers": {"q15": 1, "q1": 5}
	}`))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{"NOTFALL"}, created.AdmissionTypes)

	fetched, err := service.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, fetched.LikertAnswers, 2)
	assert.Equal(t, 1, fetched.LikertAnswers[0].QuestionNo)
	assert.Equal(t, 15, fetched.LikertAnswers[1].QuestionNo)
	assert.Equal(t, entities.LikertVeryGood, fetched.LikertAnswers[0].Option)
	assert.Equal(t, entities.LikertVeryPoor, fetched.LikertAnswers[1].Option)
	for _, answer := range fetched.LikertAnswers {
		assert.Equal(t, created.ID, answer.ResponseID)
		assert.NotEmpty(t, answer.ID)
	}
}

func TestSurveyService_SubmitRejectsInvalidLikertWithoutWriting(t *testing.T) {
	cases := map[string]struct {
		body    string
		message string
	}{
		"question zero":       {`{"q0": 3}`, "Invalid Likert key q0. Allowed q1..q30."},
		"question 31":         {`{"q31": 3}`, "Invalid Likert key q31. Allowed q1..q30."},
		"fractional key":      {`{"q1.5": 3}`, "Invalid Likert key q1.5. Allowed q1..q30."},
		"letters":             {`{"qAB": 3}`, "Invalid Likert key qAB. Allowed q1..q30."},
		"string score":        {`{"q3": "Q31"}`, "Invalid score for q3. Allowed 1..5."},
		"score above range":   {`{"q3": 6}`, "Invalid score for q3. Allowed 1..5."},
		"score below range":   {`{"q3": 0}`, "Invalid score for q3. Allowed 1..5."},
		"fractional score":    {`{"q3": 4.5}`, "Invalid score for q3. Allowed 1..5."},
		"null score":          {`{"q3": null}`, "Invalid score for q3. Allowed 1..5."},
		"valid before bad":    {`{"q1": 5, "q2": 4, "q99": 1}`, "Invalid Likert key q99. Allowed q1..q30."},
		"sorted first report": {`{"qz": 1, "q0": 1}`, "Invalid Likert key q0. Allowed q1..q30."},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.NewStore()
			service := services.NewSurveyService(store, nil, nil)

			_, err := service.Submit(ctx, decode(t, `{"station":"3B","room":"1","likertAnswers":`+tc.body+`}`))
			require.Error(t, err)

			appErr := validationError(t, err)
			assert.Equal(t, tc.message, appErr.Fields["likertAnswers"])
			assert.Equal(t, tc.message, appErr.Message)

			page, err := service.List(ctx, repositories.SurveyFilter{}, pagination.Params{Limit: 10})
			require.NoError(t, err)
			assert.Zero(t, page.Total)
		})
	}
}

func TestSurveyService_SubmitTimestampHasStoragePrecision(t *testing.T) {
	repo := new(MockSurveyRepository)
	var stored time.Time
	repo.On("Create", mock.Anything, mock.AnythingOfType("*entities.SurveyResponse")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*entities.SurveyResponse).CreatedAt
		}).
		Return(nil)

	created, err := services.NewSurveyService(repo, nil, nil).Submit(context.Background(), decode(t, `{"station":"3B","room":"1"}`))
	require.NoError(t, err)

	// timestamptz keeps microseconds; the 201 body must match what a later read returns
	assert.Zero(t, created.CreatedAt.Nanosecond()%int(time.Microsecond))
	assert.True(t, stored.Equal(created.CreatedAt))
	returned, _ := created.CreatedAt.MarshalJSON()
	roundTripped, _ := created.CreatedAt.Truncate(time.Microsecond).MarshalJSON()
	assert.Equal(t, string(roundTripped), string(returned))
	repo.AssertExpectations(t)
}

func TestSurveyService_SubmitAcceptsIntegralNumbers(t *testing.T) {
	service := services.NewSurveyService(memory.NewStore(), nil, nil)

	created, err := service.Submit(context.Background(), decode(t, `{"station":"3B","room":"1","likertAnswers":{" Q7 ": 4.0}}`))
	require.NoError(t, err)
	require.Len(t, created.LikertAnswers, 1)
	assert.Equal(t, 7, created.LikertAnswers[0].QuestionNo)
	assert.Equal(t, 4, created.LikertAnswers[0].Score)
}

func TestSurveyService_SubmitRejectsDuplicateQuestion(t *testing.T) {
	service := services.NewSurveyService(memory.NewStore(), nil, nil)

	_, err := service.Submit(context.Background(), decode(t, `{"station":"3B","room":"1","likertAnswers":{"q1": 5, "Q1": 4}}`))
	require.Error(t, err)
	assert.Contains(t, validationError(t, err).Fields["likertAnswers"], "Duplicate Likert answer for question 1")
}

func TestSurveyService_SubmitAccumulatesFieldErrors(t *testing.T) {
	service := services.NewSurveyService(memory.NewStore(), nil, nil)

	_, err := service.Submit(context.Background(), decode(t, `{
		"station": "  ",
		"q33": 7,
		"contactRequested": true,
		"contactEmail": "not-an-address",
		"likertAnswers": {"q40": 1}
	}`))
	require.Error(t, err)

	appErr := validationError(t, err)
	fields := appErr.Fields
	assert.Len(t, fields, 5)
	assert.Contains(t, fields, "station")
	assert.Contains(t, fields, "room")
	assert.Contains(t, fields, "q33")
	assert.Contains(t, fields, "contactEmail")
	assert.Contains(t, fields, "likertAnswers")
	assert.Equal(t, "invalid survey submission", appErr.Message)
}

func TestSurveyService_SubmitLegacyFieldNames(t *testing.T) {
	service := services.NewSurveyService(memory.NewStore(), nil, nil)

	created, err := service.Submit(context.Background(), decode(t, `{
		"station": "3B",
		"zimmer": "204",
		"aufnahmeart": "notfall",
		"freitext": "Sehr freundliches Personal",
		"likert": {"q2": 4},
		"q33": 2
	}`))
	require.NoError(t, err)

	assert.Equal(t, "204", created.Room)
	assert.Equal(t, []string{"NOTFALL"}, created.AdmissionTypes)
	require.NotNil(t, created.Comment)
	assert.Equal(t, "Sehr freundliches Personal", *created.Comment)
	require.NotNil(t, created.Q33)
	assert.Equal(t, 2, *created.Q33)
	require.Len(t, created.LikertAnswers, 1)
	assert.Equal(t, entities.LikertGood, created.LikertAnswers[0].Option)
}

func TestSurveyService_ContactStoredOnlyWhenRequested(t *testing.T) {
	service := services.NewSurveyService(memory.NewStore(), nil, nil)

	created, err := service.Submit(context.Background(), decode(t, `{
		"station": "3B", "room": "1",
		"contactRequested": false,
		"contactName": "Erika Mustermann",
		"contactEmail": "broken"
	}`))
	require.NoError(t, err)
	assert.False(t, created.Contact.Requested)
	assert.Nil(t, created.Contact.Name)
	assert.Nil(t, created.Contact.Email)

	created, err = service.Submit(context.Background(), decode(t, `{
		"station": "3B", "room": "1",
		"contactRequested": true,
		"contactName": "Erika Mustermann",
		"contactEmail": "erika@example.org"
	}`))
	require.NoError(t, err)
	require.NotNil(t, created.Contact.Email)
	assert.Equal(t, "erika@example.org", *created.Contact.Email)
}

func TestSurveyService_SubmitWithoutAnswers(t *testing.T) {
	service := services.NewSurveyService(memory.NewStore(), nil, nil)

	created, err := service.Submit(context.Background(), decode(t, `{"station":"3B","room":"1"}`))
	require.NoError(t, err)
	assert.NotNil(t, created.LikertAnswers)
	assert.Empty(t, created.LikertAnswers)
}

func TestSurveyService_SubmitStorageFailure(t *testing.T) {
	repo := new(MockSurveyRepository)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*entities.SurveyResponse")).
		Return(apperrors.NewStorageError("failed to create survey response", errors.New("connection refused")))

	cache := NewMockCacheProvider()
	stats := services.NewSurveyStatsService(memory.NewStore(), cache, time.Minute, nil)
	service := services.NewSurveyService(repo, stats, nil)

	_, err := service.Submit(context.Background(), decode(t, `{"station":"3B","room":"1","likertAnswers":{"q1":5}}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))

	exists, _ := cache.Exists(context.Background(), "stats:generation")
	assert.False(t, exists)
	repo.AssertExpectations(t)
}

func TestSurveyService_SubmitBumpsStatsGeneration(t *testing.T) {
	ctx := context.Background()
	cache := NewMockCacheProvider()
	store := memory.NewStore()
	stats := services.NewSurveyStatsService(store, cache, time.Minute, nil)
	service := services.NewSurveyService(store, stats, nil)

	_, err := service.Submit(ctx, decode(t, `{"station":"3B","room":"1"}`))
	require.NoError(t, err)

	generation, err := cache.Get(ctx, "stats:generation")
	require.NoError(t, err)
	assert.Equal(t, "1", string(generation))
}

func TestSurveyService_SubmitSucceedsWhenCacheIsDown(t *testing.T) {
	cache := NewMockCacheProvider()
	cache.setFailing(true)
	store := memory.NewStore()
	service := services.NewSurveyService(store, services.NewSurveyStatsService(store, cache, time.Minute, nil), nil)

	_, err := service.Submit(context.Background(), decode(t, `{"station":"3B","room":"1"}`))
	assert.NoError(t, err)
}

func TestSurveyService_Get(t *testing.T) {
	service := services.NewSurveyService(memory.NewStore(), nil, nil)

	_, err := service.Get(context.Background(), " ")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = service.Get(context.Background(), "0b9c8a7e-1111-4222-8333-944455556666")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestSurveyService_ListPaginates(t *testing.T) {
	ctx := context.Background()
	service := services.NewSurveyService(memory.NewStore(), nil, nil)
	for i := 0; i < 3; i++ {
		_, err := service.Submit(ctx, decode(t, `{"station":"3B","room":"1"}`))
		require.NoError(t, err)
	}
	_, err := service.Submit(ctx, decode(t, `{"station":"4A","room":"1"}`))
	require.NoError(t, err)

	station := repositories.NewSurveyFilter(repositories.SurveyFilterParams{Station: "3B"})
	page, err := service.List(ctx, station, pagination.Params{Limit: 2, Offset: 0})
	require.NoError(t, err)

	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasMore)
	responses, ok := page.Data.([]*entities.SurveyResponse)
	require.True(t, ok)
	assert.Len(t, responses, 2)
}
