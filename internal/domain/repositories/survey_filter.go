package repositories

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/patientvoice/backend/internal/domain/entities"
	apperrors "github.com/patientvoice/backend/pkg/errors"
	"github.com/patientvoice/backend/pkg/utils"
)

// Columns of survey_responses a filter can restrict.
const (
	FilterColumnCreatedAt      = "created_at"
	FilterColumnStation        = "station"
	FilterColumnAdmissionTypes = "admission_types"
)

// FilterOp is the comparison a FilterClause applies.
type FilterOp int

const (
	// FilterOpGte is an inclusive lower bound
	FilterOpGte FilterOp = iota
	// FilterOpLte is an inclusive upper bound
	FilterOpLte
	// FilterOpEq is exact equality
	FilterOpEq
	// FilterOpOverlap matches when the column array shares at least one element with the value
	FilterOpOverlap
)

// FilterClause is one response-level condition. Every storage backend renders the same
// clause list, so all query paths see the same set of responses.
type FilterClause struct {
	Column string
	Op     FilterOp
	Value  interface{}
}

// SurveyFilterParams holds the optional filter inputs before normalization.
type SurveyFilterParams struct {
	From           *time.Time
	To             *time.Time
	Station        string
	AdmissionTypes []string
}

// SurveyFilter restricts survey responses by creation time, station and admission type.
// The zero value matches everything.
type SurveyFilter struct {
	From           *time.Time
	To             *time.Time
	Station        *string
	AdmissionTypes []string
}

// NewSurveyFilter builds a filter. Admission types are normalized; an empty station or an
// admission-type list without usable values leaves that dimension unrestricted.
func NewSurveyFilter(params SurveyFilterParams) SurveyFilter {
	filter := SurveyFilter{
		From: params.From,
		To:   params.To,
	}
	if params.Station != "" {
		station := params.Station
		filter.Station = &station
	}
	if normalized := utils.CleanAdmissionTypes(params.AdmissionTypes); len(normalized) > 0 {
		filter.AdmissionTypes = normalized
	}
	return filter
}

// ParseSurveyFilter reads from, to, station and aufnahmeart/admissionType from query values.
func ParseSurveyFilter(values url.Values) (SurveyFilter, error) {
	params := SurveyFilterParams{
		Station: values.Get("station"),
	}

	fields := map[string]string{}
	if raw := values.Get("from"); raw != "" {
		from, err := ParseInstant(raw)
		if err != nil {
			fields["from"] = "must be an ISO-8601 datetime"
		} else {
			params.From = &from
		}
	}
	if raw := values.Get("to"); raw != "" {
		to, err := ParseInstant(raw)
		if err != nil {
			fields["to"] = "must be an ISO-8601 datetime"
		} else {
			params.To = &to
		}
	}
	if len(fields) > 0 {
		return SurveyFilter{}, apperrors.NewFieldValidationError("invalid filter parameters", fields)
	}

	params.AdmissionTypes = append(params.AdmissionTypes, values["aufnahmeart"]...)
	params.AdmissionTypes = append(params.AdmissionTypes, values["admissionType"]...)

	return NewSurveyFilter(params), nil
}

// ParseInstant parses an RFC 3339 timestamp; fractional seconds are optional.
func ParseInstant(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Clauses returns the filter as an ordered list of response-level conditions.
func (f SurveyFilter) Clauses() []FilterClause {
	var clauses []FilterClause
	if f.From != nil {
		clauses = append(clauses, FilterClause{Column: FilterColumnCreatedAt, Op: FilterOpGte, Value: *f.From})
	}
	if f.To != nil {
		clauses = append(clauses, FilterClause{Column: FilterColumnCreatedAt, Op: FilterOpLte, Value: *f.To})
	}
	if f.Station != nil {
		clauses = append(clauses, FilterClause{Column: FilterColumnStation, Op: FilterOpEq, Value: *f.Station})
	}
	if len(f.AdmissionTypes) > 0 {
		clauses = append(clauses, FilterClause{Column: FilterColumnAdmissionTypes, Op: FilterOpOverlap, Value: f.AdmissionTypes})
	}
	return clauses
}

// Matches evaluates the filter against a response held in memory.
func (f SurveyFilter) Matches(response *entities.SurveyResponse) bool {
	if f.From != nil && response.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && response.CreatedAt.After(*f.To) {
		return false
	}
	if f.Station != nil && response.Station != *f.Station {
		return false
	}
	if len(f.AdmissionTypes) > 0 && !response.HasAdmissionType(f.AdmissionTypes) {
		return false
	}
	return true
}

// CacheKey renders the filter canonically. Equal filters produce equal keys.
func (f SurveyFilter) CacheKey() string {
	var b strings.Builder
	if f.From != nil {
		b.WriteString("from=" + f.From.UTC().Format(time.RFC3339Nano))
	}
	b.WriteString("|")
	if f.To != nil {
		b.WriteString("to=" + f.To.UTC().Format(time.RFC3339Nano))
	}
	b.WriteString("|")
	if f.Station != nil {
		b.WriteString("station=" + url.QueryEscape(*f.Station))
	}
	b.WriteString("|")
	if len(f.AdmissionTypes) > 0 {
		types := append([]string(nil), f.AdmissionTypes...)
		sort.Strings(types)
		escaped := make([]string, len(types))
		for i, t := range types {
			escaped[i] = url.QueryEscape(t)
		}
		b.WriteString("admission=" + strings.Join(escaped, ","))
	}
	return b.String()
}
