package repositories

import (
	"context"
	"time"

	"github.com/patientvoice/backend/internal/domain/entities"
)

// StatsQueryLogRepository persists the audit trail of statistics requests
type StatsQueryLogRepository interface {
	LogQuery(ctx context.Context, entry *entities.StatsQueryLog) error
	ListRecent(ctx context.Context, filter StatsQueryLogFilter) ([]*entities.StatsQueryLog, error)
}

// StatsQueryLogFilter narrows the audit entries returned by ListRecent
type StatsQueryLogFilter struct {
	From    *time.Time
	To      *time.Time
	Station *string
	Limit   int
}
