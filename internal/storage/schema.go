// ABOUTME: SQLite schema definition and per-metric table naming.
// ABOUTME: One obs_<metric> table per metric; custom tables are allow-listed in custom_metrics.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harperreed/healthdash/internal/models"
)

// initSchema creates the fixed tables. Custom metric tables are created on first upsert.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS custom_metrics (
		name TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS manual_entries (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		metric TEXT NOT NULL,
		value REAL NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imports (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		metric TEXT,
		received INTEGER NOT NULL,
		inserted INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	`
	if _, err := d.db.Exec(schema); err != nil {
		return err
	}

	for _, k := range models.BuiltinKinds {
		table, err := TableName(models.Metric{Kind: k})
		if err != nil {
			return err
		}
		if _, err := d.db.Exec(observationTableDDL(table)); err != nil {
			return fmt.Errorf("create %s: %w", table, err)
		}
	}
	return nil
}

func observationTableDDL(table string) string {
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		subject_id TEXT NOT NULL,
		date TEXT NOT NULL,
		value REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(subject_id, date)
	)`, table)
}

// TableName returns the table holding a metric's observations. It is the only
// place table names are produced, and it accepts nothing but sanitized identifiers.
func TableName(m models.Metric) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	if m.Kind == models.KindCustom {
		return "obs_custom_" + m.Name, nil
	}
	return "obs_" + string(m.Kind), nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// registeredTable resolves a metric's table, consulting the allow-list for
// custom metrics. ok is false for a custom metric that was never registered.
func registeredTable(ctx context.Context, q queryer, m models.Metric) (table string, ok bool, err error) {
	table, err = TableName(m)
	if err != nil {
		return "", false, err
	}
	if m.Kind != models.KindCustom {
		return table, true, nil
	}

	var name string
	err = q.QueryRowContext(ctx, `SELECT name FROM custom_metrics WHERE name = ?`, m.Name).Scan(&name)
	if err == sql.ErrNoRows {
		return table, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup custom metric: %w", err)
	}
	return table, true, nil
}

// ensureTable registers a custom metric and creates its table inside tx.
func ensureTable(ctx context.Context, tx *sql.Tx, m models.Metric) (string, error) {
	table, err := TableName(m)
	if err != nil {
		return "", err
	}
	if m.Kind != models.KindCustom {
		return table, nil
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO custom_metrics (name) VALUES (?)`, m.Name); err != nil {
		return "", fmt.Errorf("register custom metric: %w", err)
	}
	if _, err := tx.ExecContext(ctx, observationTableDDL(table)); err != nil {
		return "", fmt.Errorf("create %s: %w", table, err)
	}
	return table, nil
}
