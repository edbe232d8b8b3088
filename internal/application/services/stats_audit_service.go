package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/internal/domain/repositories"
	"github.com/patientvoice/backend/internal/infrastructure/observability"
)

const defaultAuditTimeout = 5 * time.Second

// StatsAuditService writes the best-effort audit trail of statistics requests.
type StatsAuditService struct {
	repo    repositories.StatsQueryLogRepository
	timeout time.Duration
	metrics *observability.Metrics
}

// NewStatsAuditService creates a new audit service.
func NewStatsAuditService(repo repositories.StatsQueryLogRepository, timeout time.Duration, metrics *observability.Metrics) *StatsAuditService {
	if timeout <= 0 {
		timeout = defaultAuditTimeout
	}
	return &StatsAuditService{
		repo:    repo,
		timeout: timeout,
		metrics: metrics,
	}
}

// Record stores entry in the background and returns immediately. A failed write is
// logged and dropped; it is never retried.
func (s *StatsAuditService) Record(entry *entities.StatsQueryLog) {
	if entry == nil {
		return
	}
	go s.write(entry)
}

func (s *StatsAuditService) write(entry *entities.StatsQueryLog) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.dropped(ctx, entry, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := s.repo.LogQuery(ctx, entry); err != nil {
		s.dropped(ctx, entry, err)
	}
}

func (s *StatsAuditService) dropped(ctx context.Context, entry *entities.StatsQueryLog, err error) {
	observability.RecordAuditFailure(ctx, s.metrics)
	observability.GetLogger().Warn().
		Err(err).
		Str("path", entry.Path).
		Int("status", entry.StatusCode).
		Msg("failed to write stats query log")
}

// ListRecent returns the newest audit entries.
func (s *StatsAuditService) ListRecent(ctx context.Context, filter repositories.StatsQueryLogFilter) ([]*entities.StatsQueryLog, error) {
	return s.repo.ListRecent(ctx, filter)
}

// ParseAuditDate parses a from/to parameter for the audit trail. Anything that is not a
// valid instant yields nil.
func ParseAuditDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := repositories.ParseInstant(raw)
	if err != nil {
		return nil
	}
	return &parsed
}
