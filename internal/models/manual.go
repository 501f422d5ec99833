// ABOUTME: Manual entry and import log models.
// ABOUTME: Manual entries are free-form (date, metric, value) rows typed in by hand.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ManualEntry is a hand-entered value for an arbitrary metric label.
type ManualEntry struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	Date      Date      `json:"date" yaml:"date"`
	Metric    string    `json:"metric" yaml:"metric"`
	Value     float64   `json:"value" yaml:"value"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NewManualEntry creates a ManualEntry with generated UUID and current timestamp.
func NewManualEntry(date Date, metric string, value float64) *ManualEntry {
	return &ManualEntry{
		ID:        uuid.New(),
		Date:      date,
		Metric:    metric,
		Value:     value,
		CreatedAt: time.Now().UTC(),
	}
}

// ImportRecord logs the outcome of one ingestion call.
type ImportRecord struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	Source    string    `json:"source" yaml:"source"`
	SubjectID string    `json:"subject_id" yaml:"subject_id"`
	Metric    string    `json:"metric,omitempty" yaml:"metric,omitempty"`
	Received  int       `json:"received" yaml:"received"`
	Inserted  int       `json:"inserted" yaml:"inserted"`
	Skipped   int       `json:"skipped" yaml:"skipped"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NewImportRecord creates an ImportRecord for the given source.
func NewImportRecord(source, subject, metric string, received, inserted, skipped int) *ImportRecord {
	return &ImportRecord{
		ID:        uuid.New(),
		Source:    source,
		SubjectID: subject,
		Metric:    metric,
		Received:  received,
		Inserted:  inserted,
		Skipped:   skipped,
		CreatedAt: time.Now().UTC(),
	}
}
