// ABOUTME: Tests for export, import, and backend migration.
// ABOUTME: Verifies JSON, YAML, and Markdown export formats and sqlite/badger round trips.
package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harperreed/healthdash/internal/models"
	"gopkg.in/yaml.v3"
)

func seed(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	rbc, _ := models.Custom("rbc")
	_, err := repo.Upsert(ctx, []models.Observation{
		models.NewObservation("alice", day("2024-11-01"), models.Steps, 100),
		models.NewObservation("alice", day("2024-11-02"), models.Steps, 200),
		models.NewObservation("alice", day("2024-11-01"), models.SleepMinutes, 450),
		models.NewObservation("alice", day("2024-11-01"), rbc, 4.7),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := repo.AddManual(ctx, models.NewManualEntry(day("2024-11-01"), "cigarettes", 2)); err != nil {
		t.Fatalf("AddManual failed: %v", err)
	}
	if err := repo.RecordImport(ctx, models.NewImportRecord("csv:seed.csv", "alice", "", 4, 4, 0)); err != nil {
		t.Fatalf("RecordImport failed: %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	db := setupTestDB(t)
	seed(t, db)

	data, err := ExportJSON(context.Background(), db)
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	var export ExportData
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if export.Version != "1.0" {
		t.Errorf("Expected version 1.0, got %s", export.Version)
	}
	if export.Tool != "healthdash" {
		t.Errorf("Expected tool healthdash, got %s", export.Tool)
	}
	if len(export.Observations) != 4 {
		t.Errorf("Expected 4 observations, got %d", len(export.Observations))
	}
	if len(export.Manual) != 1 || len(export.Imports) != 1 {
		t.Errorf("Expected 1 manual entry and 1 import, got %d and %d", len(export.Manual), len(export.Imports))
	}
}

func TestImportJSONSkipsExisting(t *testing.T) {
	src := setupTestDB(t)
	seed(t, src)
	ctx := context.Background()
	raw, err := ExportJSON(ctx, src)
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	dst := setupTestDB(t)
	res, err := ImportJSON(ctx, dst, raw)
	if err != nil {
		t.Fatalf("ImportJSON failed: %v", err)
	}
	if res.Inserted != 4 {
		t.Errorf("Expected 4 inserted, got %+v", res)
	}

	res, err = ImportJSON(ctx, dst, raw)
	if err != nil {
		t.Fatalf("second ImportJSON failed: %v", err)
	}
	if res.Inserted != 0 || res.Skipped != 4 {
		t.Errorf("Re-import should skip everything, got %+v", res)
	}
	manual, err := dst.ListManual(ctx, 0)
	if err != nil {
		t.Fatalf("ListManual failed: %v", err)
	}
	if len(manual) != 1 {
		t.Errorf("Expected manual entries to stay deduplicated, got %d", len(manual))
	}
}

func TestExportYAML(t *testing.T) {
	db := setupTestDB(t)
	seed(t, db)

	data, err := ExportYAML(context.Background(), db)
	if err != nil {
		t.Fatalf("ExportYAML failed: %v", err)
	}

	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		t.Fatalf("Failed to parse YAML: %v", err)
	}
	if yamlData["version"] != "1.0" {
		t.Errorf("Expected version 1.0, got %v", yamlData["version"])
	}
	obs, ok := yamlData["observations"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected observations map, got %T", yamlData["observations"])
	}
	if steps, ok := obs["steps"].([]interface{}); !ok || len(steps) != 2 {
		t.Errorf("Expected 2 steps entries, got %v", obs["steps"])
	}
	if _, ok := obs["custom:rbc"]; !ok {
		t.Errorf("Expected custom:rbc group, got keys %v", obs)
	}
}

func TestExportMarkdown(t *testing.T) {
	db := setupTestDB(t)
	seed(t, db)
	ctx := context.Background()

	md, err := ExportMarkdown(ctx, db, nil, nil)
	if err != nil {
		t.Fatalf("ExportMarkdown failed: %v", err)
	}
	for _, want := range []string{"# Health Export", "## steps", "## custom:rbc", "| 2024-11-02 | alice | 200.00 steps |", "## Manual entries"} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "## heart_rate") {
		t.Error("Empty metrics should be omitted from a full export")
	}

	since := day("2024-11-02")
	steps := models.Steps
	md, err = ExportMarkdown(ctx, db, &steps, &since)
	if err != nil {
		t.Fatalf("ExportMarkdown with filters failed: %v", err)
	}
	if strings.Contains(md, "2024-11-01") {
		t.Errorf("since filter not applied:\n%s", md)
	}
	if strings.Contains(md, "## sleep_minutes") {
		t.Errorf("metric filter not applied:\n%s", md)
	}
}

func TestMigrateDataSQLiteToBadger(t *testing.T) {
	src := setupTestDB(t)
	seed(t, src)
	dst := setupTestBadger(t)
	ctx := context.Background()

	summary, err := MigrateData(ctx, src, dst)
	if err != nil {
		t.Fatalf("MigrateData failed: %v", err)
	}
	if summary.Observations != 4 {
		t.Errorf("Expected 4 migrated observations, got %d", summary.Observations)
	}
	if summary.Manual != 1 || summary.Imports != 1 {
		t.Errorf("Expected 1 manual and 1 import migrated, got %+v", summary)
	}

	rbc, _ := models.Custom("rbc")
	got, err := dst.List(ctx, "alice", rbc, models.DateRange{})
	if err != nil {
		t.Fatalf("List from dst failed: %v", err)
	}
	if len(got) != 1 || *got[0].Value != 4.7 {
		t.Errorf("Expected migrated rbc value, got %+v", got)
	}
}

func TestMigrateDataBadgerToSQLite(t *testing.T) {
	src := setupTestBadger(t)
	seed(t, src)
	dst := setupTestDB(t)
	ctx := context.Background()

	summary, err := MigrateData(ctx, src, dst)
	if err != nil {
		t.Fatalf("MigrateData failed: %v", err)
	}
	if summary.Observations != 4 {
		t.Errorf("Expected 4 migrated observations, got %d", summary.Observations)
	}

	again, err := MigrateData(ctx, src, dst)
	if err != nil {
		t.Fatalf("second MigrateData failed: %v", err)
	}
	if again.Observations != 0 || again.Skipped != 4 {
		t.Errorf("Expected second migration to skip everything, got %+v", again)
	}
}

func TestIsDirNonEmpty(t *testing.T) {
	dir := t.TempDir()

	nonEmpty, err := IsDirNonEmpty(filepath.Join(dir, "missing"))
	if err != nil || nonEmpty {
		t.Errorf("missing dir: got (%v, %v), want (false, nil)", nonEmpty, err)
	}

	nonEmpty, err = IsDirNonEmpty(dir)
	if err != nil || nonEmpty {
		t.Errorf("empty dir: got (%v, %v), want (false, nil)", nonEmpty, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	nonEmpty, err = IsDirNonEmpty(dir)
	if err != nil || !nonEmpty {
		t.Errorf("populated dir: got (%v, %v), want (true, nil)", nonEmpty, err)
	}
}
