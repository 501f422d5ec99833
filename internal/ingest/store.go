// ABOUTME: Persists parsed observations and logs the import outcome.
// ABOUTME: Shared by the CLI, the HTTP upload handler, and the MCP import tool.
package ingest

import (
	"context"
	"sort"
	"strings"

	"github.com/harperreed/healthdash/internal/models"
	"github.com/harperreed/healthdash/internal/storage"
	"github.com/harperreed/healthdash/internal/telemetry"
	log "github.com/sirupsen/logrus"
)

// Source labels where a batch came from.
const (
	SourceCSV    = "csv"
	SourceFit    = "fit"
	SourceImport = "import"
)

// Store upserts obs as one batch, appends an import record and counts the
// outcome. A failed upsert writes nothing and records nothing.
func Store(ctx context.Context, repo storage.Repository, metrics *telemetry.Manager, source, subject string, obs []models.Observation) (storage.UpsertResult, error) {
	res, err := repo.Upsert(ctx, obs)
	if err != nil {
		return storage.UpsertResult{}, err
	}

	rec := models.NewImportRecord(source, subject, metricList(obs), len(obs), res.Inserted, res.Skipped)
	if err := repo.RecordImport(ctx, rec); err != nil {
		// observations are already committed at this point
		log.WithError(err).Warn("record import failed")
	}
	metrics.ObserveUpsert(source, len(obs), res.Inserted, res.Skipped)

	log.WithFields(log.Fields{
		"source":   source,
		"subject":  subject,
		"received": len(obs),
		"inserted": res.Inserted,
		"skipped":  res.Skipped,
	}).Info("observations stored")
	return res, nil
}

// metricList returns the sorted distinct metric keys in obs, comma separated.
func metricList(obs []models.Observation) string {
	seen := make(map[string]struct{})
	for _, o := range obs {
		seen[o.Metric.Key()] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
