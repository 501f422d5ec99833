// ABOUTME: Repository interface for daily health observation storage.
// ABOUTME: Defines the contract shared by the SQLite and Badger backends.
package storage

import (
	"context"
	"fmt"

	"github.com/harperreed/healthdash/internal/models"
)

// UpsertResult reports how many records were written and how many already existed.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Repository defines the storage interface for health data.
// This interface allows swapping implementations (e.g., for testing).
type Repository interface {
	// Observation operations
	Upsert(ctx context.Context, obs []models.Observation) (UpsertResult, error)
	List(ctx context.Context, subject string, metric models.Metric, r models.DateRange) ([]models.Observation, error)
	Delete(ctx context.Context, subject string, metric *models.Metric) (int, error)
	DropAll(ctx context.Context) error
	Metrics(ctx context.Context) ([]models.Metric, error)
	Subjects(ctx context.Context) ([]string, error)

	// Manual entries
	AddManual(ctx context.Context, e *models.ManualEntry) error
	ListManual(ctx context.Context, limit int) ([]*models.ManualEntry, error)
	RemoveLastManual(ctx context.Context) (*models.ManualEntry, error)

	// Import log
	RecordImport(ctx context.Context, rec *models.ImportRecord) error
	ListImports(ctx context.Context, limit int) ([]*models.ImportRecord, error)

	// Lifecycle
	Close() error
}

// validateAll checks every observation before any write happens.
func validateAll(obs []models.Observation) error {
	if len(obs) == 0 {
		return &models.ValidationError{Field: "observations", Message: "nothing to store"}
	}
	for i, o := range obs {
		if err := o.Validate(); err != nil {
			return fmt.Errorf("observation %d: %w", i, err)
		}
	}
	return nil
}
