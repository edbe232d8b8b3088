package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/internal/domain/repositories"
	apperrors "github.com/patientvoice/backend/pkg/errors"
)

// StatsService defines the statistics operations used by the handler.
type StatsService interface {
	QuestionStats(ctx context.Context, filter repositories.SurveyFilter) ([]entities.QuestionStat, error)
	OverallStats(ctx context.Context, filter repositories.SurveyFilter) (*entities.OverallStats, error)
	Distribution(ctx context.Context, filter repositories.SurveyFilter) ([]*entities.QuestionDistribution, error)
	Dashboard(ctx context.Context, filter repositories.SurveyFilter) (*entities.StatsDashboard, error)
}

// QueryLogReader lists the audit trail of statistics requests.
type QueryLogReader interface {
	ListRecent(ctx context.Context, filter repositories.StatsQueryLogFilter) ([]*entities.StatsQueryLog, error)
}

// StatsHandler serves the Likert statistics.
type StatsHandler struct {
	stats     StatsService
	queryLogs QueryLogReader
}

// NewStatsHandler creates a new statistics handler.
func NewStatsHandler(stats StatsService, queryLogs QueryLogReader) *StatsHandler {
	return &StatsHandler{stats: stats, queryLogs: queryLogs}
}

// GetQuestionStats handles GET /stats/questions
func (h *StatsHandler) GetQuestionStats(w http.ResponseWriter, r *http.Request) {
	serveStats(w, r, h.stats.QuestionStats)
}

// GetOverallStats handles GET /stats/overall
func (h *StatsHandler) GetOverallStats(w http.ResponseWriter, r *http.Request) {
	serveStats(w, r, h.stats.OverallStats)
}

// GetDistribution handles GET /stats/distribution
func (h *StatsHandler) GetDistribution(w http.ResponseWriter, r *http.Request) {
	serveStats(w, r, h.stats.Distribution)
}

// GetDashboard handles GET /stats/dashboard
func (h *StatsHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	serveStats(w, r, h.stats.Dashboard)
}

// ListQueryLogs handles GET /stats/query-logs
func (h *StatsHandler) ListQueryLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseQueryLogFilter(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	entries, err := h.queryLogs.ListRecent(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"data":  entries,
		"count": len(entries),
	})
}

// serveStats parses the filter before anything is queried.
func serveStats[T any](w http.ResponseWriter, r *http.Request, compute func(context.Context, repositories.SurveyFilter) (T, error)) {
	filter, err := repositories.ParseSurveyFilter(r.URL.Query())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := compute(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func parseQueryLogFilter(r *http.Request) (repositories.StatsQueryLogFilter, error) {
	query := r.URL.Query()
	filter := repositories.StatsQueryLogFilter{}
	fields := map[string]string{}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			fields["limit"] = "must be a positive integer"
		}
		filter.Limit = limit
	}
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		if from, err := repositories.ParseInstant(raw); err == nil {
			filter.From = &from
		} else {
			fields["from"] = "must be an ISO-8601 datetime"
		}
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		if to, err := repositories.ParseInstant(raw); err == nil {
			filter.To = &to
		} else {
			fields["to"] = "must be an ISO-8601 datetime"
		}
	}
	if station := strings.TrimSpace(query.Get("station")); station != "" {
		filter.Station = &station
	}

	if len(fields) > 0 {
		return filter, apperrors.NewFieldValidationError("invalid query parameters", fields)
	}
	return filter, nil
}
