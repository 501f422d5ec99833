// ABOUTME: Fitness aggregate API client.
// ABOUTME: Posts daily-bucket aggregate requests in fixed windows and parses them into observations.
package fitapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/healthdash/internal/ingest"
	"github.com/harperreed/healthdash/internal/models"
	"github.com/harperreed/healthdash/internal/telemetry"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the user dataset endpoint root.
	DefaultBaseURL = "https://www.googleapis.com/fitness/v1/users/me"

	// DayMillis is the width of one aggregate bucket.
	DayMillis int64 = 86400000

	serviceName  = "google-fit"
	maxErrorBody = 4096
)

// DataTypes maps built-in metrics to the aggregate data type they are fetched with.
var DataTypes = map[models.MetricKind]string{
	models.KindSteps:        "com.google.step_count.delta",
	models.KindHeartRate:    "com.google.heart_rate.bpm",
	models.KindCalories:     "com.google.calories.expended",
	models.KindSleepMinutes: "com.google.sleep.segment",
}

// Client fetches daily aggregates for one authorized user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	windowDays int
	metrics    *telemetry.Manager
}

// Option configures the Client during construction.
type Option func(*Client)

// WithBaseURL points the client at another endpoint root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithTimeout sets a timeout on every HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithWindowDays sets how many days each aggregate request covers.
func WithWindowDays(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.windowDays = n
		}
	}
}

// WithMetrics counts calls by response status.
func WithMetrics(m *telemetry.Manager) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a Client. httpClient carries authorization, normally from
// Authorizer.HTTPClient. It is copied so options never mutate the caller's value.
func New(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	hc := *httpClient
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &hc,
		windowDays: 30,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type aggregateBy struct {
	DataTypeName string `json:"dataTypeName"`
}

type bucketByTime struct {
	DurationMillis int64 `json:"durationMillis"`
}

// AggregateRequest is the body of a dataset:aggregate call.
type AggregateRequest struct {
	AggregateBy     []aggregateBy `json:"aggregateBy"`
	BucketByTime    bucketByTime  `json:"bucketByTime"`
	StartTimeMillis int64         `json:"startTimeMillis"`
	EndTimeMillis   int64         `json:"endTimeMillis"`
}

// Window is one half-open [Start, End) request span.
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows splits [from, to) into spans of at most days days.
func Windows(from, to time.Time, days int) []Window {
	if days <= 0 {
		days = 1
	}
	var out []Window
	for start := from; start.Before(to); {
		end := start.AddDate(0, 0, days)
		if end.After(to) {
			end = to
		}
		out = append(out, Window{Start: start, End: end})
		start = end
	}
	return out
}

// Fetch pulls one built-in metric for [from, to) and returns one observation
// per daily bucket. Windows are requested in order and the first failure
// stops the fetch.
func (c *Client) Fetch(ctx context.Context, subject string, metric models.Metric, from, to time.Time) ([]models.Observation, error) {
	dataType, ok := DataTypes[metric.Kind]
	if !ok {
		return nil, &models.ValidationError{Field: "metric", Message: fmt.Sprintf("%s cannot be fetched", metric)}
	}
	if !from.Before(to) {
		return nil, &models.ValidationError{Field: "range", Message: "start must be before end"}
	}

	var out []models.Observation
	for _, w := range Windows(from.UTC(), to.UTC(), c.windowDays) {
		resp, err := c.aggregate(ctx, AggregateRequest{
			AggregateBy:     []aggregateBy{{DataTypeName: dataType}},
			BucketByTime:    bucketByTime{DurationMillis: DayMillis},
			StartTimeMillis: w.Start.UnixMilli(),
			EndTimeMillis:   w.End.UnixMilli(),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, resp.Observations(subject, metric)...)
	}

	log.WithFields(log.Fields{
		"metric":  metric.String(),
		"subject": subject,
		"count":   len(out),
	}).Debug("fitness fetch complete")
	return out, nil
}

func (c *Client) aggregate(ctx context.Context, body AggregateRequest) (*ingest.FitResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode aggregate request: %w", err)
	}

	url := c.baseURL + "/dataset:aggregate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create aggregate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveFitCall("error")
		return nil, fmt.Errorf("do aggregate request: %w", err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveFitCall(strconv.Itoa(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return nil, &models.ExternalServiceError{Service: serviceName, StatusCode: resp.StatusCode, Body: msg}
	}

	var out ingest.FitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode aggregate response: %w", err)
	}
	return &out, nil
}
