// ABOUTME: Data migration between health storage backends.
// ABOUTME: Copies observations, manual entries, and the import log from source to destination.

package storage

import (
	"context"
	"fmt"
	"os"
)

// MigrateSummary holds counts of migrated entities.
type MigrateSummary struct {
	Observations int
	Skipped      int
	Manual       int
	Imports      int
}

// MigrateData copies all data from src to dst storage. Observations already
// in dst are skipped rather than overwritten.
func MigrateData(ctx context.Context, src, dst Repository) (*MigrateSummary, error) {
	data, err := GetAllData(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	res, err := ImportData(ctx, dst, data)
	if err != nil {
		return nil, fmt.Errorf("write destination: %w", err)
	}

	return &MigrateSummary{
		Observations: res.Inserted,
		Skipped:      res.Skipped,
		Manual:       len(data.Manual),
		Imports:      len(data.Imports),
	}, nil
}

// IsDirNonEmpty checks whether a directory exists and contains any files or subdirectories.
// Returns false if the directory does not exist or is empty.
func IsDirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}
