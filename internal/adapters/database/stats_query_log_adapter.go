package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/internal/domain/repositories"
	"github.com/patientvoice/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/patientvoice/backend/pkg/errors"
)

const statsQueryLogsTable = "stats_query_logs"

// Limits applied by ListRecent.
const (
	DefaultQueryLogLimit = 50
	MaxQueryLogLimit     = 500
)

// StatsQueryLogAdapter persists the stats request audit trail.
type StatsQueryLogAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewStatsQueryLogAdapter creates a new audit log adapter.
func NewStatsQueryLogAdapter(client *postgres.Client) repositories.StatsQueryLogRepository {
	return &StatsQueryLogAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// LogQuery inserts one audit entry.
func (a *StatsQueryLogAdapter) LogQuery(ctx context.Context, entry *entities.StatsQueryLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	admissionTypes := entry.AdmissionTypes
	if admissionTypes == nil {
		admissionTypes = []string{}
	}

	query, args, err := a.db.Insert(statsQueryLogsTable).
		Rows(goqu.Record{
			"id":              entry.ID,
			"created_at":      entry.CreatedAt,
			"method":          entry.Method,
			"path":            entry.Path,
			"raw_query":       entry.RawQuery,
			"station":         nullString(entry.Station),
			"date_from":       nullTime(entry.DateFrom),
			"date_to":         nullTime(entry.DateTo),
			"admission_types": pq.Array(admissionTypes),
			"client_ip":       sql.NullString{String: entry.ClientIP, Valid: entry.ClientIP != ""},
			"user_agent":      nullString(entry.UserAgent),
			"status_code":     entry.StatusCode,
			"duration_ms":     entry.DurationMs,
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build stats query log insert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewStorageError("failed to log stats query", err)
	}
	return nil
}

// ListRecent returns audit entries newest first.
func (a *StatsQueryLogAdapter) ListRecent(ctx context.Context, filter repositories.StatsQueryLogFilter) ([]*entities.StatsQueryLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLogLimit
	}
	if limit > MaxQueryLogLimit {
		limit = MaxQueryLogLimit
	}

	var where []exp.Expression
	if filter.From != nil {
		where = append(where, goqu.I("created_at").Gte(*filter.From))
	}
	if filter.To != nil {
		where = append(where, goqu.I("created_at").Lte(*filter.To))
	}
	if filter.Station != nil {
		where = append(where, goqu.I("station").Eq(*filter.Station))
	}

	query, args, err := a.db.From(statsQueryLogsTable).
		Select(
			"id", "created_at", "method", "path", "raw_query", "station", "date_from", "date_to",
			"admission_types", "client_ip", "user_agent", "status_code", "duration_ms",
		).
		Where(where...).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build stats query log query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list stats query logs", err)
	}
	defer rows.Close()

	entries := []*entities.StatsQueryLog{}
	for rows.Next() {
		var (
			entry          entities.StatsQueryLog
			station        sql.NullString
			dateFrom       sql.NullTime
			dateTo         sql.NullTime
			admissionTypes pq.StringArray
			clientIP       sql.NullString
			userAgent      sql.NullString
		)
		err := rows.Scan(
			&entry.ID,
			&entry.CreatedAt,
			&entry.Method,
			&entry.Path,
			&entry.RawQuery,
			&station,
			&dateFrom,
			&dateTo,
			&admissionTypes,
			&clientIP,
			&userAgent,
			&entry.StatusCode,
			&entry.DurationMs,
		)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to scan stats query log", err)
		}
		entry.Station = stringPtr(station)
		entry.DateFrom = timePtr(dateFrom)
		entry.DateTo = timePtr(dateTo)
		entry.AdmissionTypes = []string(admissionTypes)
		entry.ClientIP = clientIP.String
		entry.UserAgent = stringPtr(userAgent)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to iterate stats query logs", err)
	}
	return entries, nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}
