// ABOUTME: CLI commands for ingesting data from CSV files, fitness responses, and JSON backups.
// ABOUTME: Every import is idempotent: rows already stored are skipped, never overwritten.
package main

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/harperreed/healthdash/internal/ingest"
	"github.com/harperreed/healthdash/internal/models"
	"github.com/harperreed/healthdash/internal/storage"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import health data",
		Long: `Import daily observations into the store.

SOURCES:

  csv    A delimited file with a date column and one numeric column per metric
  fit    A saved fitness API dataset:aggregate response for one metric
  json   A backup written by 'healthdash export json'

Importing the same data twice is safe: rows for a (subject, date, metric)
that already exist are skipped and the stored value is kept.`,
	}
	cmd.AddCommand(newImportCSVCmd(a), newImportFitCmd(a), newImportJSONCmd(a))
	return cmd
}

func newImportCSVCmd(a *app) *cobra.Command {
	var (
		subject    string
		dateColumn string
		delimiter  string
	)

	cmd := &cobra.Command{
		Use:   "csv <file>",
		Short: "Import a CSV file",
		Long: `Import a CSV file whose first row is the header.

COLUMNS:

  The date column is the one named by --date-column (default "date"), or the
  first column whose values all parse as dates. Known headers map to built-in
  metrics:

    steps, step_counts, step_count       -> steps
    heart_rate, average_hr, hr           -> heart_rate
    calories                             -> calories
    sleep_minutes, minutes_asleep        -> sleep_minutes

  Any other numeric column becomes a custom metric named after its header.
  Non-numeric cells are stored as absent values.

EXAMPLES:

  healthdash import csv fitbit.csv --subject alice
  healthdash import csv labs.tsv --delimiter '\t' --date-column day`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comma, err := parseDelimiter(delimiter)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer f.Close()

			subj := a.subject(subject)
			obs, err := ingest.ParseCSV(f, ingest.CSVOptions{
				Subject:    subj,
				DateColumn: dateColumn,
				Comma:      comma,
			})
			if err != nil {
				return err
			}

			res, err := ingest.Store(cmd.Context(), a.repo, a.metrics, ingest.SourceCSV, subj, obs)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			printUpsert(cmd, args[0], subj, len(obs), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject that owns the rows (default: config subject)")
	cmd.Flags().StringVar(&dateColumn, "date-column", "", "name of the date column (default: date)")
	cmd.Flags().StringVar(&delimiter, "delimiter", ",", "field delimiter (use '\\t' for tabs)")
	return cmd
}

func newImportFitCmd(a *app) *cobra.Command {
	var (
		subject string
		metric  string
	)

	cmd := &cobra.Command{
		Use:   "fit <file>",
		Short: "Import a saved fitness aggregate response",
		Long: `Import a dataset:aggregate JSON response saved from the fitness API.

Each daily bucket becomes one observation. Steps and calories are summed,
heart rate is averaged and sleep segments are summed as minutes. Buckets
with no points are skipped, so a later import can still fill those days.

EXAMPLES:

  healthdash import fit steps.json --metric steps --subject alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := models.ParseMetric(metric)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer f.Close()

			subj := a.subject(subject)
			obs, err := ingest.ParseFitResponse(f, subj, m)
			if err != nil {
				return err
			}
			if len(obs) == 0 {
				color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "No buckets with data in response.")
				return nil
			}

			res, err := ingest.Store(cmd.Context(), a.repo, a.metrics, ingest.SourceFit, subj, obs)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			printUpsert(cmd, args[0], subj, len(obs), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject that owns the rows (default: config subject)")
	cmd.Flags().StringVarP(&metric, "metric", "m", "steps", "metric the response holds")
	return cmd
}

func newImportJSONCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "json <file>",
		Short: "Restore a JSON backup",
		Long: `Import observations, manual entries and the import log from a JSON backup.

EXAMPLES:

  healthdash import json backup.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			res, err := storage.ImportJSON(cmd.Context(), a.repo, data)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			a.metrics.ObserveUpsert(ingest.SourceImport, res.Inserted+res.Skipped, res.Inserted, res.Skipped)

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Imported from %s\n", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "  %d new, %d already present\n", res.Inserted, res.Skipped)
			return nil
		},
	}
}

func printUpsert(cmd *cobra.Command, source, subject string, received int, res storage.UpsertResult) {
	out := cmd.OutOrStdout()
	color.New(color.FgGreen).Fprintf(out, "✓ Imported %s for %s\n", source, subject)
	fmt.Fprintf(out, "  %d observations: %d new, %d already present\n", received, res.Inserted, res.Skipped)
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "", ",":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError {
		return 0, fmt.Errorf("delimiter must be a single character: %q", s)
	}
	return r, nil
}
