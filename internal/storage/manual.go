// ABOUTME: Manual entry and import log operations for SQLite storage.
// ABOUTME: Manual entries support add, list, and remove-last; imports are append-only.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/healthdash/internal/models"
)

// createdAtLayout is fixed-width UTC, so created_at sorts chronologically as
// text and agrees with the Badger backend's time-ordered keys.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

func formatCreatedAt(t time.Time) string {
	return t.UTC().Format(createdAtLayout)
}

// AddManual stores a hand-entered value. Re-adding an existing ID is a no-op.
func (d *DB) AddManual(ctx context.Context, e *models.ManualEntry) error {
	if e.Metric == "" {
		return &models.ValidationError{Field: "metric", Message: "metric is required"}
	}
	if e.Date.IsZero() {
		return &models.ValidationError{Field: "date", Message: "date is required"}
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO manual_entries (id, date, metric, value, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		e.ID.String(), e.Date.String(), e.Metric, e.Value, formatCreatedAt(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("add manual entry: %w", err)
	}
	return nil
}

// ListManual returns manual entries oldest first. limit <= 0 means all.
func (d *DB) ListManual(ctx context.Context, limit int) ([]*models.ManualEntry, error) {
	query := `SELECT id, date, metric, value, created_at FROM manual_entries ORDER BY created_at ASC, rowid ASC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list manual entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.ManualEntry{}
	for rows.Next() {
		e, err := scanManual(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RemoveLastManual deletes and returns the manual entry with the latest
// creation time, the same entry the Badger backend removes.
func (d *DB) RemoveLastManual(ctx context.Context) (*models.ManualEntry, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin remove: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, date, metric, value, created_at
		FROM manual_entries ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	e, err := scanManual(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{What: "manual entry"}
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM manual_entries WHERE id = ?`, e.ID.String()); err != nil {
		return nil, fmt.Errorf("remove manual entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit remove: %w", err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanManual(s scanner) (*models.ManualEntry, error) {
	var e models.ManualEntry
	var idStr, date, createdAt string
	if err := s.Scan(&idStr, &date, &e.Metric, &e.Value, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan manual entry: %w", err)
	}
	e.ID, _ = uuid.Parse(idStr)
	e.Date, _ = models.ParseDate(date)
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &e, nil
}

// RecordImport appends an entry to the import log.
func (d *DB) RecordImport(ctx context.Context, rec *models.ImportRecord) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO imports (id, source, subject_id, metric, received, inserted, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		rec.ID.String(), rec.Source, rec.SubjectID, rec.Metric,
		rec.Received, rec.Inserted, rec.Skipped, formatCreatedAt(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	return nil
}

// ListImports returns import records, newest first. limit <= 0 means all.
func (d *DB) ListImports(ctx context.Context, limit int) ([]*models.ImportRecord, error) {
	query := `
		SELECT id, source, subject_id, metric, received, inserted, skipped, created_at
		FROM imports ORDER BY created_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	records := []*models.ImportRecord{}
	for rows.Next() {
		var r models.ImportRecord
		var idStr, createdAt string
		var metric sql.NullString
		if err := rows.Scan(&idStr, &r.Source, &r.SubjectID, &metric,
			&r.Received, &r.Inserted, &r.Skipped, &createdAt); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		r.ID, _ = uuid.Parse(idStr)
		r.Metric = metric.String
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		records = append(records, &r)
	}
	return records, rows.Err()
}
