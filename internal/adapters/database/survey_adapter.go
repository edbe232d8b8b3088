package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/internal/domain/repositories"
	"github.com/patientvoice/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/patientvoice/backend/pkg/errors"
)

const (
	surveyResponsesTable = "survey_responses"
	likertAnswersTable   = "survey_likert_answers"
)

var responseColumns = []interface{}{
	"id", "created_at", "station", "room", "admission_types",
	"q31", "q32", "q33", "comment",
	"contact_requested", "contact_name", "contact_email", "contact_phone",
	"client_ip", "user_agent",
}

// SurveyAdapter implements survey response persistence in Postgres.
type SurveyAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSurveyAdapter creates a new survey adapter.
func NewSurveyAdapter(client *postgres.Client) repositories.SurveyRepository {
	return &SurveyAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts the response row and its answers in one transaction.
func (a *SurveyAdapter) Create(ctx context.Context, response *entities.SurveyResponse) error {
	if response == nil {
		return apperrors.NewInternalError("survey response is nil", fmt.Errorf("survey response is nil"))
	}

	responseQuery, responseArgs, err := a.db.Insert(surveyResponsesTable).
		Rows(responseRecord(response)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build survey response insert query", err)
	}

	var answersQuery string
	var answersArgs []interface{}
	if len(response.LikertAnswers) > 0 {
		rows := make([]interface{}, 0, len(response.LikertAnswers))
		for _, answer := range response.LikertAnswers {
			rows = append(rows, goqu.Record{
				"id":          answer.ID,
				"response_id": response.ID,
				"question_no": answer.QuestionNo,
				"score":       answer.Score,
				"option":      string(answer.Option),
			})
		}
		answersQuery, answersArgs, err = a.db.Insert(likertAnswersTable).Rows(rows...).Prepared(true).ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build likert answers insert query", err)
		}
	}

	tx, err := a.client.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, responseQuery, responseArgs...); err != nil {
		return apperrors.NewStorageError("failed to create survey response", err)
	}
	if answersQuery != "" {
		if _, err := tx.ExecContext(ctx, answersQuery, answersArgs...); err != nil {
			return apperrors.NewStorageError("failed to create likert answers", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("failed to commit survey response", err)
	}
	return nil
}

// GetByID retrieves a response with its answers.
func (a *SurveyAdapter) GetByID(ctx context.Context, id string) (*entities.SurveyResponse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("survey response with id %s not found", id))
	}

	query, args, err := a.db.From(surveyResponsesTable).
		Select(responseColumns...).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build survey response query", err)
	}

	response, err := scanResponse(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("survey response with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to get survey response", err)
	}

	answers, err := a.answersFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if found := answers[id]; found != nil {
		response.LikertAnswers = found
	}
	return response, nil
}

// List returns matching responses newest first together with the total match count.
func (a *SurveyAdapter) List(ctx context.Context, filter repositories.SurveyFilter, limit, offset int) ([]*entities.SurveyResponse, int, error) {
	where := filterExpression(filter, "r")

	countQuery, countArgs, err := a.db.From(goqu.T(surveyResponsesTable).As("r")).
		Select(goqu.COUNT("*")).
		Where(where).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build survey count query", err)
	}

	var total int
	if err := a.client.DB().QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, apperrors.NewStorageError("failed to count survey responses", err)
	}
	if total == 0 {
		return []*entities.SurveyResponse{}, 0, nil
	}

	columns := make([]interface{}, len(responseColumns))
	for i, column := range responseColumns {
		columns[i] = goqu.I("r." + column.(string))
	}
	query, args, err := a.db.From(goqu.T(surveyResponsesTable).As("r")).
		Select(columns...).
		Where(where).
		Order(goqu.I("r.created_at").Desc(), goqu.I("r.id").Asc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build survey list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.NewStorageError("failed to list survey responses", err)
	}
	defer rows.Close()

	responses := make([]*entities.SurveyResponse, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		response, err := scanResponse(rows)
		if err != nil {
			return nil, 0, apperrors.NewStorageError("failed to scan survey response", err)
		}
		responses = append(responses, response)
		ids = append(ids, response.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.NewStorageError("failed to iterate survey responses", err)
	}
	if len(ids) == 0 {
		return responses, total, nil
	}

	answers, err := a.answersFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, response := range responses {
		if found := answers[response.ID]; found != nil {
			response.LikertAnswers = found
		}
	}
	return responses, total, nil
}

func (a *SurveyAdapter) answersFor(ctx context.Context, responseIDs []string) (map[string][]entities.LikertAnswer, error) {
	query, args, err := a.db.From(likertAnswersTable).
		Select("id", "response_id", "question_no", "score", "option").
		Where(goqu.Ex{"response_id": responseIDs}).
		Order(goqu.I("response_id").Asc(), goqu.I("question_no").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build likert answers query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to get likert answers", err)
	}
	defer rows.Close()

	answers := make(map[string][]entities.LikertAnswer, len(responseIDs))
	for rows.Next() {
		var answer entities.LikertAnswer
		var option string
		if err := rows.Scan(&answer.ID, &answer.ResponseID, &answer.QuestionNo, &answer.Score, &option); err != nil {
			return nil, apperrors.NewStorageError("failed to scan likert answer", err)
		}
		answer.Option = entities.LikertOption(option)
		answers[answer.ResponseID] = append(answers[answer.ResponseID], answer)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to iterate likert answers", err)
	}
	return answers, nil
}

func responseRecord(response *entities.SurveyResponse) goqu.Record {
	admissionTypes := response.AdmissionTypes
	if admissionTypes == nil {
		admissionTypes = []string{}
	}
	return goqu.Record{
		"id":                response.ID,
		"created_at":        response.CreatedAt,
		"station":           response.Station,
		"room":              response.Room,
		"admission_types":   pq.Array(admissionTypes),
		"q31":               nullString(response.Q31),
		"q32":               nullString(response.Q32),
		"q33":               nullInt(response.Q33),
		"comment":           nullString(response.Comment),
		"contact_requested": response.Contact.Requested,
		"contact_name":      nullString(response.Contact.Name),
		"contact_email":     nullString(response.Contact.Email),
		"contact_phone":     nullString(response.Contact.Phone),
		"client_ip":         sql.NullString{String: response.ClientIP, Valid: response.ClientIP != ""},
		"user_agent":        nullString(response.UserAgent),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResponse(row rowScanner) (*entities.SurveyResponse, error) {
	var (
		response       entities.SurveyResponse
		admissionTypes pq.StringArray
		q31, q32       sql.NullString
		q33            sql.NullInt64
		comment        sql.NullString
		contactName    sql.NullString
		contactEmail   sql.NullString
		contactPhone   sql.NullString
		clientIP       sql.NullString
		userAgent      sql.NullString
	)

	err := row.Scan(
		&response.ID,
		&response.CreatedAt,
		&response.Station,
		&response.Room,
		&admissionTypes,
		&q31,
		&q32,
		&q33,
		&comment,
		&response.Contact.Requested,
		&contactName,
		&contactEmail,
		&contactPhone,
		&clientIP,
		&userAgent,
	)
	if err != nil {
		return nil, err
	}

	response.AdmissionTypes = []string(admissionTypes)
	if response.AdmissionTypes == nil {
		response.AdmissionTypes = []string{}
	}
	response.Q31 = stringPtr(q31)
	response.Q32 = stringPtr(q32)
	if q33.Valid {
		v := int(q33.Int64)
		response.Q33 = &v
	}
	response.Comment = stringPtr(comment)
	response.Contact.Name = stringPtr(contactName)
	response.Contact.Email = stringPtr(contactEmail)
	response.Contact.Phone = stringPtr(contactPhone)
	response.ClientIP = clientIP.String
	response.UserAgent = stringPtr(userAgent)
	response.LikertAnswers = []entities.LikertAnswer{}
	return &response, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}
