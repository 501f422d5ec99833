// ABOUTME: MCP tool implementations for the health dashboard.
// ABOUTME: Import, list, delete, render, and manual-entry tools over the repository.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/healthdash/internal/aggregate"
	"github.com/harperreed/healthdash/internal/dashboard"
	"github.com/harperreed/healthdash/internal/ingest"
	"github.com/harperreed/healthdash/internal/models"
	"github.com/harperreed/healthdash/internal/render"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	// import_csv
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "import_csv",
		Description: "Import daily observations from CSV text with a date column and one column per metric; returns per-column summary statistics",
	}, s.handleImportCSV)

	// list_observations
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_observations",
		Description: "List stored daily observations for a metric, optionally filtered by subject and date range",
	}, s.handleListObservations)

	// delete_observations
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_observations",
		Description: "Delete observations for a subject and/or metric",
	}, s.handleDeleteObservations)

	// render_dashboard
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "render_dashboard",
		Description: "Build the dashboard and return its panels as plotly-ready JSON",
	}, s.handleRenderDashboard)

	// add_manual
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_manual",
		Description: "Record a hand-entered value for any metric label on a date",
	}, s.handleAddManual)

	// remove_last_manual
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "remove_last_manual",
		Description: "Remove the most recently added manual entry",
	}, s.handleRemoveLastManual)
}

// Tool input/output types

type importCSVInput struct {
	CSV        string `json:"csv" jsonschema:"CSV text whose first row is the header"`
	Subject    string `json:"subject,omitempty" jsonschema:"Subject that owns the rows, defaults to the configured subject"`
	DateColumn string `json:"date_column,omitempty" jsonschema:"Name of the date column, defaults to date"`
}

type importOutput struct {
	Subject  string            `json:"subject"`
	Received int               `json:"received"`
	Inserted int               `json:"inserted"`
	Skipped  int               `json:"skipped"`
	Stats    []aggregate.Stats `json:"stats"`
	Message  string            `json:"message"`
}

type rangeInput struct {
	Subject string `json:"subject,omitempty" jsonschema:"Subject to filter by, all subjects when empty"`
	From    string `json:"from,omitempty" jsonschema:"First date to include (YYYY-MM-DD)"`
	To      string `json:"to,omitempty" jsonschema:"Last date to include (YYYY-MM-DD)"`
}

type listObservationsInput struct {
	Metric  string `json:"metric" jsonschema:"Metric: steps, heart_rate, calories, sleep_minutes, or a custom name"`
	Subject string `json:"subject,omitempty" jsonschema:"Subject to filter by, all subjects when empty"`
	From    string `json:"from,omitempty" jsonschema:"First date to include (YYYY-MM-DD)"`
	To      string `json:"to,omitempty" jsonschema:"Last date to include (YYYY-MM-DD)"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Max results, newest kept (default 100)"`
}

type observationOutput struct {
	SubjectID string   `json:"subject_id"`
	Date      string   `json:"date"`
	Value     *float64 `json:"value"`
}

type listObservationsOutput struct {
	Metric       string              `json:"metric"`
	Unit         string              `json:"unit,omitempty"`
	Observations []observationOutput `json:"observations"`
	Total        int                 `json:"total"`
}

type deleteObservationsInput struct {
	Subject string `json:"subject,omitempty" jsonschema:"Subject whose rows to delete"`
	Metric  string `json:"metric,omitempty" jsonschema:"Metric whose rows to delete"`
}

type deleteOutput struct {
	Deleted int    `json:"deleted"`
	Message string `json:"message"`
}

type dashboardOutput struct {
	Composite render.Composite `json:"composite"`
	Figure    render.Figure    `json:"figure"`
}

type addManualInput struct {
	Date   string  `json:"date" jsonschema:"Date of the value (YYYY-MM-DD)"`
	Metric string  `json:"metric" jsonschema:"Free-form metric label, e.g. weight or rbc"`
	Value  float64 `json:"value" jsonschema:"The value"`
}

type manualOutput struct {
	ID      string  `json:"id"`
	Date    string  `json:"date"`
	Metric  string  `json:"metric"`
	Value   float64 `json:"value"`
	Message string  `json:"message"`
}

type emptyInput struct{}

func parseRange(in rangeInput) (dashboard.Request, error) {
	req := dashboard.Request{Subject: strings.TrimSpace(in.Subject)}
	if in.From != "" {
		d, err := models.ParseDate(in.From)
		if err != nil {
			return req, err
		}
		req.Range.From = d
	}
	if in.To != "" {
		d, err := models.ParseDate(in.To)
		if err != nil {
			return req, err
		}
		req.Range.To = d
	}
	return req, nil
}

// Tool handlers

func (s *Server) handleImportCSV(ctx context.Context, req *mcp.CallToolRequest, input importCSVInput) (*mcp.CallToolResult, importOutput, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		subject = s.opts.Subject
	}

	obs, err := ingest.ParseCSV(strings.NewReader(input.CSV), ingest.CSVOptions{
		Subject:    subject,
		DateColumn: input.DateColumn,
	})
	if err != nil {
		return nil, importOutput{}, fmt.Errorf("failed to parse csv: %w", err)
	}

	res, err := ingest.Store(ctx, s.repo, s.opts.Metrics, ingest.SourceCSV, subject, obs)
	if err != nil {
		return nil, importOutput{}, fmt.Errorf("failed to store observations: %w", err)
	}

	return nil, importOutput{
		Subject:  subject,
		Received: len(obs),
		Inserted: res.Inserted,
		Skipped:  res.Skipped,
		Stats:    aggregate.DescribeObservations(obs),
		Message:  fmt.Sprintf("Imported %d observations for %s (%d new, %d already present)", len(obs), subject, res.Inserted, res.Skipped),
	}, nil
}

func (s *Server) handleListObservations(ctx context.Context, req *mcp.CallToolRequest, input listObservationsInput) (*mcp.CallToolResult, listObservationsOutput, error) {
	metric, err := models.ParseMetric(input.Metric)
	if err != nil {
		return nil, listObservationsOutput{}, err
	}
	r, err := parseRange(rangeInput{Subject: input.Subject, From: input.From, To: input.To})
	if err != nil {
		return nil, listObservationsOutput{}, err
	}
	if input.Limit <= 0 {
		input.Limit = 100
	}

	obs, err := s.repo.List(ctx, r.Subject, metric, r.Range)
	if err != nil {
		return nil, listObservationsOutput{}, fmt.Errorf("failed to list observations: %w", err)
	}
	total := len(obs)
	if len(obs) > input.Limit {
		obs = obs[len(obs)-input.Limit:]
	}

	out := listObservationsOutput{
		Metric:       metric.Key(),
		Unit:         metric.Unit(),
		Observations: make([]observationOutput, 0, len(obs)),
		Total:        total,
	}
	for _, o := range obs {
		out.Observations = append(out.Observations, observationOutput{
			SubjectID: o.SubjectID,
			Date:      o.Date.String(),
			Value:     o.Value,
		})
	}
	return nil, out, nil
}

func (s *Server) handleDeleteObservations(ctx context.Context, req *mcp.CallToolRequest, input deleteObservationsInput) (*mcp.CallToolResult, deleteOutput, error) {
	subject := strings.TrimSpace(input.Subject)
	var metric *models.Metric
	if input.Metric != "" {
		m, err := models.ParseMetric(input.Metric)
		if err != nil {
			return nil, deleteOutput{}, err
		}
		metric = &m
	}
	if subject == "" && metric == nil {
		return nil, deleteOutput{}, &models.ValidationError{Field: "subject", Message: "subject or metric is required"}
	}

	n, err := s.repo.Delete(ctx, subject, metric)
	if err != nil {
		return nil, deleteOutput{}, fmt.Errorf("failed to delete observations: %w", err)
	}
	return nil, deleteOutput{
		Deleted: n,
		Message: fmt.Sprintf("Deleted %d observations", n),
	}, nil
}

func (s *Server) handleRenderDashboard(ctx context.Context, req *mcp.CallToolRequest, input rangeInput) (*mcp.CallToolResult, dashboardOutput, error) {
	r, err := parseRange(input)
	if err != nil {
		return nil, dashboardOutput{}, err
	}
	c, err := s.dash.Build(ctx, r)
	if err != nil {
		return nil, dashboardOutput{}, fmt.Errorf("failed to build dashboard: %w", err)
	}
	return nil, dashboardOutput{Composite: c, Figure: c.Plotly()}, nil
}

func (s *Server) handleAddManual(ctx context.Context, req *mcp.CallToolRequest, input addManualInput) (*mcp.CallToolResult, manualOutput, error) {
	date, err := models.ParseDate(input.Date)
	if err != nil {
		return nil, manualOutput{}, err
	}
	label := strings.TrimSpace(input.Metric)
	if label == "" {
		return nil, manualOutput{}, &models.ValidationError{Field: "metric", Message: "metric is required"}
	}

	e := models.NewManualEntry(date, label, input.Value)
	if err := s.repo.AddManual(ctx, e); err != nil {
		return nil, manualOutput{}, fmt.Errorf("failed to add manual entry: %w", err)
	}
	return nil, manualOutput{
		ID:      e.ID.String()[:8],
		Date:    e.Date.String(),
		Metric:  e.Metric,
		Value:   e.Value,
		Message: fmt.Sprintf("Added %s = %.2f on %s", e.Metric, e.Value, e.Date),
	}, nil
}

func (s *Server) handleRemoveLastManual(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, manualOutput, error) {
	e, err := s.repo.RemoveLastManual(ctx)
	if err != nil {
		return nil, manualOutput{}, fmt.Errorf("failed to remove manual entry: %w", err)
	}
	return nil, manualOutput{
		ID:      e.ID.String()[:8],
		Date:    e.Date.String(),
		Metric:  e.Metric,
		Value:   e.Value,
		Message: fmt.Sprintf("Removed %s = %.2f on %s", e.Metric, e.Value, e.Date),
	}, nil
}
