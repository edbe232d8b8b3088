package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patientvoice/backend/internal/adapters/memory"
	"github.com/patientvoice/backend/internal/api/handlers"
	"github.com/patientvoice/backend/internal/api/routes"
	"github.com/patientvoice/backend/internal/application/services"
	"github.com/patientvoice/backend/internal/domain/repositories"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	stats := services.NewSurveyStatsService(store, nil, 0, nil)
	audit := services.NewStatsAuditService(store, time.Second, nil)

	router := routes.NewRouter(
		handlers.NewSurveyHandler(services.NewSurveyService(store, stats, nil)),
		handlers.NewStatsHandler(stats, audit),
		audit,
		[]string{"https://dashboard.example.org"},
		nil,
	)
	server := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(server.Close)
	return server, store
}

func auditCount(t *testing.T, store *memory.Store) int {
	t.Helper()
	entries, err := store.ListRecent(context.Background(), repositories.StatsQueryLogFilter{})
	require.NoError(t, err)
	return len(entries)
}

func TestRouter_Health(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_SubmitThenFetchUnderBothPrefixes(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/survey", "application/json",
		strings.NewReader(`{"station":"3B","room":"1","likertAnswers":{"q1":5,"q15":1}}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	for _, prefix := range []string{"", "/api"} {
		resp, err := http.Get(server.URL + prefix + "/survey/" + created.ID)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, prefix)
	}
}

func TestRouter_EmptySurveyIDIsBadRequest(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/survey/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_OversizedBodyRejected(t *testing.T) {
	server, _ := newTestServer(t)

	body := `{"station":"3B","room":"1","comment":"` + strings.Repeat("x", 70<<10) + `"}`
	resp, err := http.Post(server.URL+"/survey", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRouter_StatsRequestsAreAuditedOnce(t *testing.T) {
	server, store := newTestServer(t)

	for _, path := range []string{
		"/stats/questions?station=3B&from=2024-06-01T00:00:00Z",
		"/api/stats/overall?aufnahmeart=emergency",
		"/stats/overall?from=garbage",
	} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Eventually(t, func() bool { return auditCount(t, store) == 3 }, time.Second, 10*time.Millisecond)

	entries, err := store.ListRecent(context.Background(), repositories.StatsQueryLogFilter{})
	require.NoError(t, err)
	byPath := map[string]int{}
	for _, entry := range entries {
		byPath[entry.Path] = entry.StatusCode
		if entry.Path == "/stats/questions" {
			require.NotNil(t, entry.Station)
			assert.Equal(t, "3B", *entry.Station)
			require.NotNil(t, entry.DateFrom)
			assert.Equal(t, "station=3B&from=2024-06-01T00:00:00Z", entry.RawQuery)
		}
		if entry.Path == "/api/stats/overall" {
			assert.Equal(t, []string{"NOTFALL"}, entry.AdmissionTypes)
		}
	}
	assert.Equal(t, http.StatusOK, byPath["/stats/questions"])
	assert.Equal(t, http.StatusOK, byPath["/api/stats/overall"])
	assert.Equal(t, http.StatusBadRequest, byPath["/stats/overall"])
}

func TestRouter_QueryLogsAndSurveysAreNotAudited(t *testing.T) {
	server, store := newTestServer(t)

	for _, path := range []string{"/stats/query-logs", "/survey", "/health"} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	assert.Never(t, func() bool { return auditCount(t, store) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestRouter_CORSPreflight(t *testing.T) {
	server, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/survey", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.example.org")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://dashboard.example.org", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_ETagRevalidation(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/stats/overall")
	require.NoError(t, err)
	resp.Body.Close()
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/stats/overall", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", etag)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}
