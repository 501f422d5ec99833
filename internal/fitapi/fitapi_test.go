// ABOUTME: Tests for the fitness API client and OAuth token handling.
// ABOUTME: Runs against an httptest fake of the aggregate and token endpoints.
package fitapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/healthdash/internal/models"
	"github.com/harperreed/healthdash/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func utcDay(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeAggregate answers each request with one bucket per day of the window,
// each holding a single intVal point of 100.
func fakeAggregate(t *testing.T, seen *[]AggregateRequest) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/dataset:aggregate", r.URL.Path)

		var req AggregateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		*seen = append(*seen, req)
		mu.Unlock()

		var buckets []string
		for start := req.StartTimeMillis; start < req.EndTimeMillis; start += DayMillis {
			buckets = append(buckets, fmt.Sprintf(
				`{"startTimeMillis":"%d","endTimeMillis":"%d","dataset":[{"point":[{"value":[{"intVal":100}]}]}]}`,
				start, start+DayMillis))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"bucket":[%s]}`, strings.Join(buckets, ","))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWindows(t *testing.T) {
	ws := Windows(utcDay("2024-11-01"), utcDay("2024-11-11"), 4)
	require.Len(t, ws, 3)
	assert.Equal(t, utcDay("2024-11-05"), ws[0].End)
	assert.Equal(t, utcDay("2024-11-09"), ws[2].Start)
	assert.Equal(t, utcDay("2024-11-11"), ws[2].End)

	assert.Empty(t, Windows(utcDay("2024-11-02"), utcDay("2024-11-01"), 4))
}

func TestFetchChunksIntoWindows(t *testing.T) {
	var seen []AggregateRequest
	srv := fakeAggregate(t, &seen)
	metrics := telemetry.NewTestManager()

	c := New(srv.Client(), WithBaseURL(srv.URL), WithWindowDays(3), WithMetrics(metrics), WithTimeout(5*time.Second))
	obs, err := c.Fetch(context.Background(), "alice", models.Steps, utcDay("2024-11-01"), utcDay("2024-11-08"))
	require.NoError(t, err)

	require.Len(t, seen, 3)
	for _, req := range seen {
		assert.Equal(t, "com.google.step_count.delta", req.AggregateBy[0].DataTypeName)
		assert.Equal(t, DayMillis, req.BucketByTime.DurationMillis)
	}

	require.Len(t, obs, 7)
	assert.Equal(t, "2024-11-01", obs[0].Date.String())
	assert.Equal(t, "2024-11-07", obs[6].Date.String())
	for _, o := range obs {
		assert.Equal(t, "alice", o.SubjectID)
		require.NotNil(t, o.Value)
		assert.Equal(t, 100.0, *o.Value)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.CounterFitCalls.WithLabelValues("200")))
}

func TestFetchNonSuccessIsExternalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()
	metrics := telemetry.NewTestManager()

	c := New(srv.Client(), WithBaseURL(srv.URL), WithMetrics(metrics))
	_, err := c.Fetch(context.Background(), "alice", models.Calories, utcDay("2024-11-01"), utcDay("2024-11-02"))
	require.Error(t, err)
	assert.True(t, models.IsExternal(err))

	var ee *models.ExternalServiceError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, http.StatusUnauthorized, ee.StatusCode)
	assert.Contains(t, ee.Body, "token expired")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CounterFitCalls.WithLabelValues("401")))
}

func TestFetchRejectsCustomMetricAndEmptyRange(t *testing.T) {
	c := New(nil)
	rbc, err := models.Custom("rbc")
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "alice", rbc, utcDay("2024-11-01"), utcDay("2024-11-02"))
	assert.True(t, models.IsValidation(err))

	_, err = c.Fetch(context.Background(), "alice", models.Steps, utcDay("2024-11-02"), utcDay("2024-11-02"))
	assert.True(t, models.IsValidation(err))
}

func TestNewDoesNotMutateCallerClient(t *testing.T) {
	hc := &http.Client{}
	New(hc, WithTimeout(time.Second))
	assert.Zero(t, hc.Timeout)
}

const installedSecret = `{"installed":{"client_id":"id.apps.example","client_secret":"shh",` +
	`"auth_uri":"https://accounts.example.com/o/oauth2/auth","token_uri":"%s",` +
	`"redirect_uris":["urn:ietf:wg:oauth:2.0:oob"]}}`

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	tok := &oauth2.Token{AccessToken: "abc", RefreshToken: "r", TokenType: "Bearer"}
	require.NoError(t, SaveToken(path, tok))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", loaded.AccessToken)
	assert.Equal(t, "r", loaded.RefreshToken)

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoginExchangesCode(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh","token_type":"Bearer","refresh_token":"r","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	tokenPath := filepath.Join(t.TempDir(), "token.json")
	a, err := NewAuthorizerFromJSON([]byte(fmt.Sprintf(installedSecret, tokenSrv.URL)), tokenPath)
	require.NoError(t, err)
	assert.Contains(t, a.AuthCodeURL("s"), "access_type=offline")

	var out strings.Builder
	tok, err := a.Login(context.Background(), strings.NewReader("the-code\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Contains(t, out.String(), "accounts.example.com")

	saved, err := LoadToken(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)
}

func TestLoginRequiresCode(t *testing.T) {
	a, err := NewAuthorizerFromJSON([]byte(fmt.Sprintf(installedSecret, "http://127.0.0.1:0")), filepath.Join(t.TempDir(), "t.json"))
	require.NoError(t, err)

	_, err = a.Login(context.Background(), strings.NewReader("\n"), &strings.Builder{})
	assert.Error(t, err)
}

func TestHTTPClientSendsBearerToken(t *testing.T) {
	var auth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"bucket":[]}`)
	}))
	defer api.Close()

	tokenPath := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(tokenPath, &oauth2.Token{
		AccessToken: "saved",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))
	a, err := NewAuthorizerFromJSON([]byte(fmt.Sprintf(installedSecret, "http://127.0.0.1:0")), tokenPath)
	require.NoError(t, err)

	hc, err := a.HTTPClient(context.Background())
	require.NoError(t, err)

	obs, err := New(hc, WithBaseURL(api.URL)).Fetch(context.Background(), "alice", models.HeartRate, utcDay("2024-11-01"), utcDay("2024-11-02"))
	require.NoError(t, err)
	assert.Empty(t, obs)
	assert.Equal(t, "Bearer saved", auth)
}
