// ABOUTME: Delimited-file ingestion into daily observations.
// ABOUTME: Locates the date column, maps headers to metrics, and coerces cells to numbers.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/harperreed/healthdash/internal/models"
	log "github.com/sirupsen/logrus"
)

// CSVOptions controls how a delimited file is read.
type CSVOptions struct {
	// Subject owns every observation produced. Required.
	Subject string
	// DateColumn names the date header. Defaults to "date".
	DateColumn string
	// Comma is the field delimiter. Defaults to ','.
	Comma rune
}

// headerAliases maps normalized headers onto built-in metrics.
var headerAliases = map[string]models.Metric{
	"steps":          models.Steps,
	"step_counts":    models.Steps,
	"step_count":     models.Steps,
	"heart_rate":     models.HeartRate,
	"average_hr":     models.HeartRate,
	"hr":             models.HeartRate,
	"calories":       models.Calories,
	"sleep_minutes":  models.SleepMinutes,
	"minutes_asleep": models.SleepMinutes,
}

// MetricForHeader resolves a column header to a built-in metric through the
// alias table, or to a custom metric named by the sanitized header.
func MetricForHeader(header string) (models.Metric, error) {
	id, err := models.SanitizeIdentifier(header)
	if err != nil {
		return models.Metric{}, err
	}
	if m, ok := headerAliases[id]; ok {
		return m, nil
	}
	return models.Metric{Kind: models.KindCustom, Name: id}, nil
}

// ParseCSV reads a header row followed by data rows and returns one
// observation per (row, numeric column). Nothing is persisted here.
func ParseCSV(r io.Reader, opts CSVOptions) ([]models.Observation, error) {
	subject := strings.TrimSpace(opts.Subject)
	if subject == "" {
		return nil, &models.ValidationError{Field: "subject", Message: "subject is required"}
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}

	records, err := reader.ReadAll()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, &models.ValidationError{Field: "file", Message: pe.Error()}
		}
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, &models.ValidationError{Field: "file", Message: "file is empty"}
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	rows := records[1:]
	if len(rows) == 0 {
		return nil, &models.ValidationError{Field: "file", Message: "file has a header but no rows"}
	}

	dateCol := findDateColumn(header, rows, opts.DateColumn)
	if dateCol < 0 {
		return nil, &models.ValidationError{Field: "date", Message: "no date column found"}
	}

	type column struct {
		index  int
		metric models.Metric
	}
	var columns []column
	seen := make(map[models.Metric]string)
	for i, h := range header {
		if i == dateCol {
			continue
		}
		if !columnIsNumeric(rows, i) {
			log.WithField("column", h).Debug("skipping non-numeric column")
			continue
		}
		m, err := MetricForHeader(h)
		if err != nil {
			log.WithField("column", h).Debug("skipping column without a usable name")
			continue
		}
		if prev, ok := seen[m]; ok {
			return nil, &models.ValidationError{
				Field:   "file",
				Message: fmt.Sprintf("columns %q and %q both map to metric %s", prev, h, m),
			}
		}
		seen[m] = h
		columns = append(columns, column{index: i, metric: m})
	}
	if len(columns) == 0 {
		return nil, &models.ValidationError{Field: "file", Message: "no numeric columns found"}
	}

	var out []models.Observation
	dropped := 0
	for _, row := range rows {
		d, ok := parseDateCell(cell(row, dateCol))
		if !ok {
			dropped++
			continue
		}
		for _, c := range columns {
			out = append(out, models.Observation{
				SubjectID: subject,
				Date:      d,
				Metric:    c.metric,
				Value:     coerce(cell(row, c.index)),
			})
		}
	}
	if dropped > 0 {
		log.WithFields(log.Fields{"dropped": dropped, "rows": len(rows)}).Debug("dropped rows with unparseable dates")
	}
	if len(out) == 0 {
		return nil, &models.ValidationError{Field: "date", Message: "no rows with a valid date"}
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// findDateColumn prefers a header named like the date column and otherwise
// takes the first column whose non-empty cells all parse as dates.
func findDateColumn(header []string, rows [][]string, name string) int {
	if name == "" {
		name = "date"
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}

	for i := range header {
		seen := false
		all := true
		for _, row := range rows {
			v := strings.TrimSpace(cell(row, i))
			if v == "" {
				continue
			}
			if _, ok := parseDateCell(v); !ok {
				all = false
				break
			}
			seen = true
		}
		if seen && all {
			return i
		}
	}
	return -1
}

func columnIsNumeric(rows [][]string, i int) bool {
	for _, row := range rows {
		if coerce(cell(row, i)) != nil {
			return true
		}
	}
	return false
}
