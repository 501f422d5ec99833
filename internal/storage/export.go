// ABOUTME: Export and import functionality for health data.
// ABOUTME: Supports JSON, YAML, and Markdown export formats across any Repository.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/healthdash/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportData represents the full export format for health data.
type ExportData struct {
	Version      string                 `json:"version" yaml:"version"`
	ExportedAt   time.Time              `json:"exported_at" yaml:"exported_at"`
	Tool         string                 `json:"tool" yaml:"tool"`
	Observations []models.Observation   `json:"observations" yaml:"observations"`
	Manual       []*models.ManualEntry  `json:"manual" yaml:"manual"`
	Imports      []*models.ImportRecord `json:"imports" yaml:"imports"`
}

// GetAllData collects every observation, manual entry, and import record.
func GetAllData(ctx context.Context, repo Repository) (*ExportData, error) {
	metrics, err := repo.Metrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}

	data := &ExportData{
		Version:      "1.0",
		ExportedAt:   time.Now(),
		Tool:         "healthdash",
		Observations: []models.Observation{},
	}
	for _, m := range metrics {
		obs, err := repo.List(ctx, "", m, models.DateRange{})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", m, err)
		}
		data.Observations = append(data.Observations, obs...)
	}

	if data.Manual, err = repo.ListManual(ctx, 0); err != nil {
		return nil, fmt.Errorf("list manual entries: %w", err)
	}
	if data.Imports, err = repo.ListImports(ctx, 0); err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	return data, nil
}

// ImportData loads an export into repo. Observations already present are skipped.
func ImportData(ctx context.Context, repo Repository, data *ExportData) (UpsertResult, error) {
	var res UpsertResult
	if len(data.Observations) > 0 {
		r, err := repo.Upsert(ctx, data.Observations)
		if err != nil {
			return res, fmt.Errorf("import observations: %w", err)
		}
		res = r
	}
	for _, e := range data.Manual {
		if err := repo.AddManual(ctx, e); err != nil {
			return res, fmt.Errorf("import manual entry: %w", err)
		}
	}
	// Import records are oldest-last in an export; replay them oldest-first.
	for i := len(data.Imports) - 1; i >= 0; i-- {
		if err := repo.RecordImport(ctx, data.Imports[i]); err != nil {
			return res, fmt.Errorf("import log entry: %w", err)
		}
	}
	return res, nil
}

// ImportJSON imports data from JSON bytes.
func ImportJSON(ctx context.Context, repo Repository, raw []byte) (UpsertResult, error) {
	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return UpsertResult{}, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return ImportData(ctx, repo, &data)
}

// ExportJSON exports all data as JSON.
func ExportJSON(ctx context.Context, repo Repository) ([]byte, error) {
	data, err := GetAllData(ctx, repo)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

type yamlPoint struct {
	Subject string   `yaml:"subject"`
	Date    string   `yaml:"date"`
	Value   *float64 `yaml:"value"`
}

type yamlManual struct {
	ID     string  `yaml:"id"`
	Date   string  `yaml:"date"`
	Metric string  `yaml:"metric"`
	Value  float64 `yaml:"value"`
}

// ExportYAML exports all data as YAML with observations grouped by metric.
func ExportYAML(ctx context.Context, repo Repository) ([]byte, error) {
	data, err := GetAllData(ctx, repo)
	if err != nil {
		return nil, err
	}

	yamlData := struct {
		Version      string                 `yaml:"version"`
		ExportedAt   string                 `yaml:"exported_at"`
		Tool         string                 `yaml:"tool"`
		Observations map[string][]yamlPoint `yaml:"observations"`
		Manual       []yamlManual           `yaml:"manual,omitempty"`
	}{
		Version:      data.Version,
		ExportedAt:   data.ExportedAt.Format(time.RFC3339),
		Tool:         data.Tool,
		Observations: make(map[string][]yamlPoint),
	}

	for _, o := range data.Observations {
		key := o.Metric.Key()
		yamlData.Observations[key] = append(yamlData.Observations[key], yamlPoint{
			Subject: o.SubjectID,
			Date:    o.Date.String(),
			Value:   o.Value,
		})
	}
	for _, e := range data.Manual {
		yamlData.Manual = append(yamlData.Manual, yamlManual{
			ID:     e.ID.String()[:8],
			Date:   e.Date.String(),
			Metric: e.Metric,
			Value:  e.Value,
		})
	}

	return yaml.Marshal(yamlData)
}

// ExportMarkdown renders observations as one table per metric. A nil metric
// exports every metric; since filters out earlier dates.
func ExportMarkdown(ctx context.Context, repo Repository, metric *models.Metric, since *models.Date) (string, error) {
	var metrics []models.Metric
	if metric != nil {
		metrics = []models.Metric{*metric}
	} else {
		all, err := repo.Metrics(ctx)
		if err != nil {
			return "", err
		}
		metrics = all
	}

	var r models.DateRange
	if since != nil {
		r.From = *since
	}

	var sb strings.Builder
	now := time.Now()
	sb.WriteString(fmt.Sprintf("# Health Export - %s\n\n", now.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC3339)))

	for _, m := range metrics {
		obs, err := repo.List(ctx, "", m, r)
		if err != nil {
			return "", err
		}
		if len(obs) == 0 && metric == nil {
			continue
		}

		sb.WriteString(fmt.Sprintf("## %s\n\n", m))
		sb.WriteString("| Date | Subject | Value |\n")
		sb.WriteString("|------|---------|-------|\n")
		for _, o := range obs {
			value := "-"
			if o.Value != nil {
				value = strings.TrimSpace(fmt.Sprintf("%.2f %s", *o.Value, m.Unit()))
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", o.Date, o.SubjectID, value))
		}
		sb.WriteString("\n")
	}

	manual, err := repo.ListManual(ctx, 0)
	if err == nil && len(manual) > 0 && metric == nil {
		sb.WriteString("## Manual entries\n\n")
		sb.WriteString("| Date | Metric | Value |\n")
		sb.WriteString("|------|--------|-------|\n")
		for _, e := range manual {
			if since != nil && e.Date.Before(*since) {
				continue
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %.2f |\n", e.Date, e.Metric, e.Value))
		}
	}

	return sb.String(), nil
}
