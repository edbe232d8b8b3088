package services

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/internal/domain/repositories"
	"github.com/patientvoice/backend/internal/infrastructure/observability"
	apperrors "github.com/patientvoice/backend/pkg/errors"
	"github.com/patientvoice/backend/pkg/pagination"
	"github.com/patientvoice/backend/pkg/utils"
)

// q33 is the overall stay rating on a school-grade scale.
const (
	minStayRating = 1
	maxStayRating = 6
)

// StatsInvalidator is notified after a response was stored so cached statistics stop
// being served.
type StatsInvalidator interface {
	Invalidate(ctx context.Context)
}

// SurveyService handles survey submissions and lookups.
type SurveyService struct {
	repo        repositories.SurveyRepository
	invalidator StatsInvalidator
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewSurveyService creates a new survey service. invalidator and metrics may be nil.
func NewSurveyService(repo repositories.SurveyRepository, invalidator StatsInvalidator, metrics *observability.Metrics) *SurveyService {
	return &SurveyService{
		repo:        repo,
		invalidator: invalidator,
		metrics:     metrics,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the input and stores the response with all of its Likert answers.
// Nothing is written when any part of the input is rejected.
func (s *SurveyService) Submit(ctx context.Context, input *SubmitSurveyInput) (*entities.SurveyResponse, error) {
	ctx, span := observability.StartSpan(ctx, "SurveyService.Submit")
	defer span.End()

	if input == nil {
		observability.RecordSubmission(ctx, s.metrics, "rejected")
		return nil, apperrors.NewValidationError("request body must be a JSON object")
	}

	response, err := s.buildResponse(input)
	if err != nil {
		observability.RecordSubmission(ctx, s.metrics, "rejected")
		return nil, err
	}

	if err := s.repo.Create(ctx, response); err != nil {
		observability.RecordError(span, err)
		observability.RecordSubmission(ctx, s.metrics, "failed")
		observability.LoggerFromContext(ctx).Error().Err(err).Str("station", response.Station).Msg("failed to store survey response")
		return nil, err
	}

	observability.RecordSubmission(ctx, s.metrics, "created")
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
	return response, nil
}

// Get returns one response by id.
func (s *SurveyService) Get(ctx context.Context, id string) (*entities.SurveyResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewFieldValidationError("id is required", map[string]string{"id": "must not be empty"})
	}
	return s.repo.GetByID(ctx, id)
}

// List returns one page of responses matching filter, newest first.
func (s *SurveyService) List(ctx context.Context, filter repositories.SurveyFilter, page pagination.Params) (*pagination.Response, error) {
	responses, total, err := s.repo.List(ctx, filter, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return pagination.NewResponse(responses, total, page), nil
}

func (s *SurveyService) buildResponse(input *SubmitSurveyInput) (*entities.SurveyResponse, error) {
	fields := map[string]string{}

	station := strings.TrimSpace(input.Station)
	if station == "" {
		fields["station"] = "is required"
	}
	room := strings.TrimSpace(input.Room)
	if room == "" {
		room = strings.TrimSpace(input.Zimmer)
	}
	if room == "" {
		fields["room"] = "is required"
	}

	var q33 *int
	if input.Q33 != nil {
		rating, ok := integerValue(input.Q33)
		if !ok || rating < minStayRating || rating > maxStayRating {
			fields["q33"] = fmt.Sprintf("must be an integer between %d and %d", minStayRating, maxStayRating)
		} else {
			q33 = &rating
		}
	}

	contact := entities.ContactDetails{Requested: input.ContactRequested}
	if input.ContactRequested {
		contact.Name = optionalText(input.ContactName)
		contact.Email = optionalText(input.ContactEmail)
		contact.Phone = optionalText(input.ContactPhone)
		if contact.Email != nil && !validEmail(*contact.Email) {
			fields["contactEmail"] = "must be a valid email address"
		}
	}

	raw := input.LikertAnswers
	if raw == nil {
		raw = input.Likert
	}
	answers, likertErr, err := parseLikertAnswers(raw)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to map likert score", err)
	}
	if likertErr != "" {
		fields["likertAnswers"] = likertErr
	}

	if len(fields) > 0 {
		message := "invalid survey submission"
		if likertErr != "" && len(fields) == 1 {
			message = likertErr
		}
		return nil, apperrors.NewFieldValidationError(message, fields)
	}

	comment := optionalText(input.Comment)
	if comment == nil {
		comment = optionalText(input.Freitext)
	}
	admissionTypes := input.AdmissionType
	if len(admissionTypes) == 0 {
		admissionTypes = input.Aufnahmeart
	}

	response := &entities.SurveyResponse{
		ID:             uuid.New().String(),
		CreatedAt:      s.now().Truncate(time.Microsecond),
		Station:        station,
		Room:           room,
		AdmissionTypes: utils.CleanAdmissionTypes(admissionTypes),
		Q31:            optionalText(input.Q31),
		Q32:            optionalText(input.Q32),
		Q33:            q33,
		Comment:        comment,
		Contact:        contact,
		ClientIP:       input.ClientIP,
		UserAgent:      input.UserAgent,
		LikertAnswers:  answers,
	}
	for i := range response.LikertAnswers {
		response.LikertAnswers[i].ID = uuid.New().String()
		response.LikertAnswers[i].ResponseID = response.ID
	}
	return response, nil
}

// parseLikertAnswers turns the key/score mapping into answers ordered by question number.
// Keys are visited in sorted order so the first reported violation is deterministic.
// The returned message is empty when every entry is valid.
func parseLikertAnswers(raw map[string]interface{}) ([]entities.LikertAnswer, string, error) {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	answers := make([]entities.LikertAnswer, 0, len(raw))
	seen := make(map[int]string, len(raw))
	for _, key := range keys {
		questionNo, ok := entities.ParseQuestionKey(key)
		if !ok || questionNo < entities.MinQuestionNo || questionNo > entities.MaxQuestionNo {
			return nil, fmt.Sprintf("Invalid Likert key %s. Allowed q%d..q%d.", key, entities.MinQuestionNo, entities.MaxQuestionNo), nil
		}
		score, ok := integerValue(raw[key])
		if !ok || score < entities.MinScore || score > entities.MaxScore {
			return nil, fmt.Sprintf("Invalid score for %s. Allowed %d..%d.", key, entities.MinScore, entities.MaxScore), nil
		}
		if previous, dup := seen[questionNo]; dup {
			return nil, fmt.Sprintf("Duplicate Likert answer for question %d (%s, %s).", questionNo, previous, key), nil
		}
		seen[questionNo] = key

		option, err := entities.ScoreToOption(score)
		if err != nil {
			return nil, "", err
		}
		answers = append(answers, entities.LikertAnswer{QuestionNo: questionNo, Score: score, Option: option})
	}

	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionNo < answers[j].QuestionNo })
	return answers, "", nil
}

func optionalText(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func validEmail(value string) bool {
	address, err := mail.ParseAddress(value)
	return err == nil && address.Address == value
}
