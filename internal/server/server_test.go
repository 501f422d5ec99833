// ABOUTME: Tests for the HTTP surface using httptest recorders over a real SQLite store.
// ABOUTME: goleak verifies no goroutines outlive the package's tests.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/healthdash/internal/dashboard"
	"github.com/harperreed/healthdash/internal/models"
	"github.com/harperreed/healthdash/internal/storage"
	"github.com/harperreed/healthdash/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain will run goleak after all tests have been run in the package
// to detect any goroutine leaks
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testEnv struct {
	repo    storage.Repository
	metrics *telemetry.Manager
	srv     *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := storage.Open(filepath.Join(t.TempDir(), "healthdash.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	metrics, reg := telemetry.NewTestManagerAndRegistry()
	dash, err := dashboard.NewService(repo, dashboard.Options{Metrics: metrics})
	require.NoError(t, err)

	return &testEnv{
		repo:    repo,
		metrics: metrics,
		srv: New(repo, dash, Options{
			Subject:  "alice",
			Metrics:  metrics,
			Gatherer: reg,
		}),
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, req)
	return rr
}

func uploadRequest(t *testing.T, subject, csv string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if subject != "" {
		require.NoError(t, mw.WriteField("subject", subject))
	}
	if csv != "" {
		fw, err := mw.CreateFormFile("file", "data.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(csv))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestUploadIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	csv := "date,steps\n2024-11-01,100\n2024-11-02,200\n"

	rr := env.do(t, uploadRequest(t, "bob", csv))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var first UploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &first))
	assert.Equal(t, "bob", first.Subject)
	assert.Equal(t, 2, first.Received)
	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 0, first.Skipped)

	rr = env.do(t, uploadRequest(t, "bob", csv))
	require.Equal(t, http.StatusOK, rr.Code)
	var second UploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &second))
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Skipped)

	obs, err := env.repo.List(context.Background(), "bob", models.Steps, models.DateRange{})
	require.NoError(t, err)
	assert.Len(t, obs, 2)
}

func TestUploadDescribesColumns(t *testing.T) {
	env := newTestEnv(t)
	csv := "date,steps,rbc\n2024-11-01,100,4.6\n2024-11-02,300,\n2024-11-03,200,\n"

	rr := env.do(t, uploadRequest(t, "bob", csv))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	require.Len(t, resp.Stats, 2)
	rbc, steps := resp.Stats[0], resp.Stats[1]
	assert.Equal(t, "custom:rbc", rbc.Name)
	assert.Equal(t, 1, rbc.Count)
	assert.Equal(t, 2, rbc.Absent)
	assert.Nil(t, rbc.StdDev)

	assert.Equal(t, "steps", steps.Name)
	require.NotNil(t, steps.Mean)
	assert.InDelta(t, 200.0, *steps.Mean, 1e-9)
	assert.InDelta(t, 200.0, *steps.Median, 1e-9)
	assert.InDelta(t, 100.0, *steps.StdDev, 1e-9)
	assert.Contains(t, rr.Body.String(), `"std_dev":null`)
}

func TestUploadDefaultsSubject(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, uploadRequest(t, "", "date,steps\n2024-11-01,100\n"))
	require.Equal(t, http.StatusOK, rr.Code)

	subjects, err := env.repo.Subjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, subjects)
}

func TestUploadRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, uploadRequest(t, "bob", ""))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, uploadRequest(t, "bob", "date,steps\n"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	imports, err := env.repo.ListImports(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, imports)
}

func TestDashboardEmptyState(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/api/dashboard?subject=alice", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp DashboardResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Composite.Panels, 4)
	for _, p := range resp.Composite.Panels {
		assert.True(t, p.Empty)
		assert.Equal(t, "No data available", p.Placeholder)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CounterRenders))
}

func TestDashboardRejectsBadRange(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/api/dashboard?from=2024-11-02&to=2024-11-01", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/api/dashboard?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDashboardPage(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, uploadRequest(t, "alice", "date,steps,minutes_asleep\n2024-11-01,100,420\n"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "Health Dashboard Overview")
	assert.Contains(t, rr.Body.String(), "Plotly.newPlot")
}

func TestListAndDeleteObservations(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, uploadRequest(t, "alice", "date,steps\n2024-11-01,100\n2024-11-02,200\n"))
	env.do(t, uploadRequest(t, "bob", "date,steps\n2024-11-01,50\n"))

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/api/observations/steps?subject=alice&from=2024-11-02", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var listed struct {
		Metric       string               `json:"metric"`
		Observations []models.Observation `json:"observations"`
		Total        int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	assert.Equal(t, "steps", listed.Metric)
	require.Equal(t, 1, listed.Total)
	assert.Equal(t, "2024-11-02", listed.Observations[0].Date.String())

	rr = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/observations", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/observations?subject=alice", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"deleted":2}`, rr.Body.String())

	rr = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/observations?all=true", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	subjects, err := env.repo.Subjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subjects)
}

func TestManualEntries(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, httptest.NewRequest(http.MethodDelete, "/api/manual/last", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	body := `{"date":"2024-11-01","metric":"weight","value":72.5}`
	rr = env.do(t, httptest.NewRequest(http.MethodPost, "/api/manual", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, httptest.NewRequest(http.MethodPost, "/api/manual", strings.NewReader(`{"metric":"weight","value":1}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/api/manual", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total":1`)

	rr = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/manual/last", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var removed models.ManualEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &removed))
	assert.Equal(t, "weight", removed.Metric)
	assert.Equal(t, 72.5, removed.Value)
}

func TestImportsAndMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, uploadRequest(t, "alice", "date,steps\n2024-11-01,100\n"))

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/api/imports?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total":1`)

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "healthdash_test_observations_inserted")
}

func TestPanicRecovery(t *testing.T) {
	metrics := telemetry.NewTestManager()
	handler := PanicRecovery(metrics)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("YOLO")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CounterRequestPanic))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(&models.ValidationError{Message: "x"}))
	assert.Equal(t, http.StatusNotFound, StatusFor(&models.NotFoundError{What: "x"}))
	assert.Equal(t, http.StatusBadGateway, StatusFor(&models.ExternalServiceError{Service: "x", StatusCode: 500}))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(assert.AnError))
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	repo, err := storage.Open(filepath.Join(t.TempDir(), "healthdash.db"))
	require.NoError(t, err)
	dash, err := dashboard.NewService(repo, dashboard.Options{})
	require.NoError(t, err)

	srv := New(repo, dash, Options{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
