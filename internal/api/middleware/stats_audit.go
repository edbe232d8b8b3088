package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/patientvoice/backend/internal/application/services"
	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/pkg/utils"
)

// AuditRecorder accepts completed statistics requests. Record must not block.
type AuditRecorder interface {
	Record(entry *entities.StatsQueryLog)
}

// StatsAudit hands one StatsQueryLog per request to recorder once the handler returned.
// A panicking handler is recorded as a 500 and the panic continues upward.
// A nil recorder disables auditing.
func StatsAudit(recorder AuditRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if recorder == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newStatusRecorder(w)

			defer func() {
				if rec := recover(); rec != nil {
					recorder.Record(newStatsQueryLog(r, http.StatusInternalServerError, time.Since(start)))
					panic(rec)
				}
			}()

			next.ServeHTTP(rw, r)

			recorder.Record(newStatsQueryLog(r, rw.statusCode, time.Since(start)))
		})
	}
}

func newStatsQueryLog(r *http.Request, statusCode int, elapsed time.Duration) *entities.StatsQueryLog {
	query := r.URL.Query()

	var station *string
	if value := strings.TrimSpace(query.Get("station")); value != "" {
		station = &value
	}

	admissionTypes := append(append([]string{}, query["aufnahmeart"]...), query["admissionType"]...)

	return &entities.StatsQueryLog{
		Method:         r.Method,
		Path:           r.URL.Path,
		RawQuery:       r.URL.RawQuery,
		Station:        station,
		DateFrom:       services.ParseAuditDate(query.Get("from")),
		DateTo:         services.ParseAuditDate(query.Get("to")),
		AdmissionTypes: utils.CleanAdmissionTypes(admissionTypes),
		ClientIP:       utils.ClientIP(r),
		UserAgent:      utils.UserAgent(r),
		StatusCode:     statusCode,
		DurationMs:     elapsed.Milliseconds(),
	}
}
