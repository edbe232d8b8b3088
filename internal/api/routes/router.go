package routes

import (
	"net/http"

	"github.com/patientvoice/backend/internal/api/handlers"
	"github.com/patientvoice/backend/internal/api/middleware"
	"github.com/patientvoice/backend/internal/infrastructure/observability"
)

// apiPrefix is where the web client mounts the service; every route is served both
// with and without it.
const apiPrefix = "/api"

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	surveyHandler *handlers.SurveyHandler
	statsHandler  *handlers.StatsHandler

	auditor        middleware.AuditRecorder
	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router. auditor and metrics may be nil.
func NewRouter(
	surveyHandler *handlers.SurveyHandler,
	statsHandler *handlers.StatsHandler,
	auditor middleware.AuditRecorder,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		surveyHandler:  surveyHandler,
		statsHandler:   statsHandler,
		auditor:        auditor,
		allowedOrigins: allowedOrigins,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Liveness only; must answer while storage is down
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	audited := middleware.StatsAudit(r.auditor)

	for _, prefix := range []string{"", apiPrefix} {
		// Survey endpoints
		r.mux.HandleFunc("POST "+prefix+"/survey", r.surveyHandler.SubmitSurvey)
		r.mux.HandleFunc("GET "+prefix+"/survey", r.surveyHandler.ListSurveys)
		r.mux.HandleFunc("GET "+prefix+"/survey/{id}", r.surveyHandler.GetSurvey)
		r.mux.HandleFunc("GET "+prefix+"/survey/{$}", r.surveyHandler.GetSurvey)

		// Statistics endpoints
		r.mux.Handle("GET "+prefix+"/stats/questions", audited(http.HandlerFunc(r.statsHandler.GetQuestionStats)))
		r.mux.Handle("GET "+prefix+"/stats/overall", audited(http.HandlerFunc(r.statsHandler.GetOverallStats)))
		r.mux.Handle("GET "+prefix+"/stats/distribution", audited(http.HandlerFunc(r.statsHandler.GetDistribution)))
		r.mux.Handle("GET "+prefix+"/stats/dashboard", audited(http.HandlerFunc(r.statsHandler.GetDashboard)))

		// Reads the audit trail and is therefore not audited itself
		r.mux.HandleFunc("GET "+prefix+"/stats/query-logs", r.statsHandler.ListQueryLogs)
	}

	// Observability wraps the mux directly so it can read the matched pattern.
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.BodyLimit(middleware.MaxSurveyBodyBytes)(handler)
	handler = middleware.Recoverer(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so preflights never reach the handlers
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
