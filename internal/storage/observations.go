// ABOUTME: Observation operations for SQLite storage.
// ABOUTME: Upsert-skip per (subject, date), date-ordered listing, bulk delete, and drop-all.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/harperreed/healthdash/internal/models"
)

// Upsert inserts observations that are not already stored and skips the rest.
// Existing values are never overwritten. Any invalid record aborts the call
// before a single write.
func (d *DB) Upsert(ctx context.Context, obs []models.Observation) (UpsertResult, error) {
	var res UpsertResult
	if err := validateAll(obs); err != nil {
		return res, err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tables := make(map[models.Metric]string)
	for _, o := range obs {
		table, ok := tables[o.Metric]
		if !ok {
			table, err = ensureTable(ctx, tx, o.Metric)
			if err != nil {
				return UpsertResult{}, err
			}
			tables[o.Metric] = table
		}

		var value sql.NullFloat64
		if o.Value != nil {
			value = sql.NullFloat64{Float64: *o.Value, Valid: true}
		}

		result, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (subject_id, date, value) VALUES (?, ?, ?)
				ON CONFLICT(subject_id, date) DO NOTHING`, table),
			o.SubjectID, o.Date.String(), value)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("insert observation: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return UpsertResult{}, fmt.Errorf("insert observation: %w", err)
		}
		if affected == 0 {
			res.Skipped++
		} else {
			res.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
	}
	return res, nil
}

// List returns a metric's observations ordered by date ascending. An empty
// subject matches every subject. A metric with no rows yields an empty slice.
func (d *DB) List(ctx context.Context, subject string, metric models.Metric, r models.DateRange) ([]models.Observation, error) {
	table, ok, err := registeredTable(ctx, d.db, metric)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.Observation{}, nil
	}

	var conds []string
	var args []interface{}
	if subject != "" {
		conds = append(conds, "subject_id = ?")
		args = append(args, subject)
	}
	if !r.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, r.From.String())
	}
	if !r.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, r.To.String())
	}

	query := fmt.Sprintf(`SELECT subject_id, date, value FROM %s`, table)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date ASC, subject_id ASC"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", metric, err)
	}
	defer rows.Close()

	out := []models.Observation{}
	for rows.Next() {
		var subj, date string
		var value sql.NullFloat64
		if err := rows.Scan(&subj, &date, &value); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		day, err := models.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o := models.Observation{SubjectID: subj, Date: day, Metric: metric}
		if value.Valid {
			o.Value = models.Float(value.Float64)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Delete removes observations for a subject (all subjects when empty) and a
// metric (all metrics when nil). It returns the number of rows removed.
func (d *DB) Delete(ctx context.Context, subject string, metric *models.Metric) (int, error) {
	var targets []models.Metric
	if metric != nil {
		targets = []models.Metric{*metric}
	} else {
		all, err := d.Metrics(ctx)
		if err != nil {
			return 0, err
		}
		targets = all
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	total := 0
	for _, m := range targets {
		table, ok, err := registeredTable(ctx, tx, m)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}

		query := fmt.Sprintf(`DELETE FROM %s`, table)
		var args []interface{}
		if subject != "" {
			query += " WHERE subject_id = ?"
			args = append(args, subject)
		}
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", m, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", m, err)
		}
		total += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	return total, nil
}

// DropAll removes every observation and every custom metric registration.
func (d *DB) DropAll(ctx context.Context) error {
	all, err := d.Metrics(ctx)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin drop: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range all {
		table, err := TableName(m)
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf(`DELETE FROM %s`, table)
		if m.Kind == models.KindCustom {
			stmt = fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM custom_metrics`); err != nil {
		return fmt.Errorf("clear custom metrics: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit drop: %w", err)
	}
	return nil
}

// Metrics returns the built-in metrics followed by registered custom metrics.
func (d *DB) Metrics(ctx context.Context) ([]models.Metric, error) {
	out := make([]models.Metric, 0, len(models.BuiltinKinds))
	for _, k := range models.BuiltinKinds {
		out = append(out, models.Metric{Kind: k})
	}

	rows, err := d.db.QueryContext(ctx, `SELECT name FROM custom_metrics ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list custom metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan custom metric: %w", err)
		}
		out = append(out, models.Metric{Kind: models.KindCustom, Name: name})
	}
	return out, rows.Err()
}

// Subjects returns every subject with at least one observation, sorted.
func (d *DB) Subjects(ctx context.Context) ([]string, error) {
	all, err := d.Metrics(ctx)
	if err != nil {
		return nil, err
	}

	parts := make([]string, 0, len(all))
	for _, m := range all {
		table, err := TableName(m)
		if err != nil {
			return nil, err
		}
		parts = append(parts, fmt.Sprintf("SELECT subject_id FROM %s", table))
	}
	query := strings.Join(parts, " UNION ") + " ORDER BY subject_id"

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	subjects := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}
