// ABOUTME: HTTP handlers for upload, dashboard, observations, manual entries, and imports.
// ABOUTME: Every handler is request scoped and reads fresh data from the repository.
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/harperreed/healthdash/internal/aggregate"
	"github.com/harperreed/healthdash/internal/dashboard"
	"github.com/harperreed/healthdash/internal/ingest"
	"github.com/harperreed/healthdash/internal/models"
	"github.com/harperreed/healthdash/internal/render"
	log "github.com/sirupsen/logrus"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// UploadResponse reports the outcome of one upload and summarizes each
// column of the uploaded file.
type UploadResponse struct {
	Subject  string            `json:"subject"`
	Received int               `json:"received"`
	Inserted int               `json:"inserted"`
	Skipped  int               `json:"skipped"`
	Stats    []aggregate.Stats `json:"stats"`
}

// DashboardResponse carries the composite and its plotly figure.
type DashboardResponse struct {
	Composite render.Composite `json:"composite"`
	Figure    render.Figure    `json:"figure"`
}

// ManualRequest is the body of POST /api/manual.
type ManualRequest struct {
	Date   models.Date `json:"date"`
	Metric string      `json:"metric"`
	Value  *float64    `json:"value"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		fail(w, r, &models.ValidationError{Field: "file", Message: fmt.Sprintf("parse upload: %v", err)})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		fail(w, r, &models.ValidationError{Field: "file", Message: "file is required"})
		return
	}
	defer file.Close()

	subject := strings.TrimSpace(r.FormValue("subject"))
	if subject == "" {
		subject = s.opts.Subject
	}

	obs, err := ingest.ParseCSV(file, ingest.CSVOptions{
		Subject:    subject,
		DateColumn: r.FormValue("date_column"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	res, err := ingest.Store(r.Context(), s.repo, s.opts.Metrics, ingest.SourceCSV, subject, obs)
	if err != nil {
		fail(w, r, err)
		return
	}

	log.Infof("upload [%s] for [%s]: %d inserted, %d skipped", header.Filename, subject, res.Inserted, res.Skipped)
	RespondJSON(w, http.StatusOK, UploadResponse{
		Subject:  subject,
		Received: len(obs),
		Inserted: res.Inserted,
		Skipped:  res.Skipped,
		Stats:    aggregate.DescribeObservations(obs),
	})
}

// dashboardRequest reads subject, from and to query parameters.
func dashboardRequest(r *http.Request) (dashboard.Request, error) {
	q := r.URL.Query()
	req := dashboard.Request{Subject: strings.TrimSpace(q.Get("subject"))}
	if from := q.Get("from"); from != "" {
		d, err := models.ParseDate(from)
		if err != nil {
			return req, err
		}
		req.Range.From = d
	}
	if to := q.Get("to"); to != "" {
		d, err := models.ParseDate(to)
		if err != nil {
			return req, err
		}
		req.Range.To = d
	}
	if !req.Range.From.IsZero() && !req.Range.To.IsZero() && req.Range.To.Before(req.Range.From) {
		return req, &models.ValidationError{Field: "to", Message: "must not be before from"}
	}
	return req, nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	req, err := dashboardRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	c, err := s.dash.Build(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, DashboardResponse{Composite: c, Figure: c.Plotly()})
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	req, err := dashboardRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	c, err := s.dash.Build(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := render.HTML(&buf, c); err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	req, err := dashboardRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	text, err := s.dash.Summary(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleListObservations(w http.ResponseWriter, r *http.Request) {
	metric, err := models.ParseMetric(mux.Vars(r)["metric"])
	if err != nil {
		fail(w, r, err)
		return
	}
	req, err := dashboardRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	obs, err := s.repo.List(r.Context(), req.Subject, metric, req.Range)
	if err != nil {
		fail(w, r, err)
		return
	}
	if obs == nil {
		obs = []models.Observation{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"metric":       metric.Key(),
		"observations": obs,
		"total":        len(obs),
	})
}

func (s *Server) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.repo.Metrics(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	subjects, err := s.repo.Subjects(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	keys := make([]string, 0, len(metrics))
	for _, m := range metrics {
		keys = append(keys, m.Key())
	}
	if subjects == nil {
		subjects = []string{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":  keys,
		"subjects": subjects,
	})
}

// handleDeleteObservations removes rows by subject and/or metric. Clearing
// everything needs an explicit all=true.
func (s *Server) handleDeleteObservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subject := strings.TrimSpace(q.Get("subject"))

	if q.Get("all") == "true" {
		if err := s.repo.DropAll(r.Context()); err != nil {
			fail(w, r, err)
			return
		}
		RespondJSON(w, http.StatusOK, map[string]interface{}{"dropped": true})
		return
	}

	var metric *models.Metric
	if raw := q.Get("metric"); raw != "" {
		m, err := models.ParseMetric(raw)
		if err != nil {
			fail(w, r, err)
			return
		}
		metric = &m
	}
	if subject == "" && metric == nil {
		fail(w, r, &models.ValidationError{Field: "subject", Message: "subject or metric is required"})
		return
	}

	n, err := s.repo.Delete(r.Context(), subject, metric)
	if err != nil {
		fail(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"deleted": n})
}

func (s *Server) handleListManual(w http.ResponseWriter, r *http.Request) {
	entries, err := s.repo.ListManual(r.Context(), limitParam(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

func (s *Server) handleAddManual(w http.ResponseWriter, r *http.Request) {
	var body ManualRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(w, r, &models.ValidationError{Field: "body", Message: fmt.Sprintf("decode: %v", err)})
		return
	}
	if body.Date.IsZero() {
		fail(w, r, &models.ValidationError{Field: "date", Message: "date is required"})
		return
	}
	if strings.TrimSpace(body.Metric) == "" {
		fail(w, r, &models.ValidationError{Field: "metric", Message: "metric is required"})
		return
	}
	if body.Value == nil {
		fail(w, r, &models.ValidationError{Field: "value", Message: "value is required"})
		return
	}

	entry := models.NewManualEntry(body.Date, strings.TrimSpace(body.Metric), *body.Value)
	if err := s.repo.AddManual(r.Context(), entry); err != nil {
		fail(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleRemoveLastManual(w http.ResponseWriter, r *http.Request) {
	entry, err := s.repo.RemoveLastManual(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	records, err := s.repo.ListImports(r.Context(), limitParam(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"imports": records,
		"total":   len(records),
	})
}

// limitParam reads ?limit=, where anything missing or invalid means no limit.
func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
