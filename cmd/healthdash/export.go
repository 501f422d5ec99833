// ABOUTME: CLI command for exporting stored data.
// ABOUTME: JSON for backup and restore, YAML for reading, Markdown for sharing.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/healthdash/internal/models"
	"github.com/harperreed/healthdash/internal/storage"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		output string
		metric string
		since  string
	)

	cmd := &cobra.Command{
		Use:   "export <format>",
		Short: "Export health data",
		Long: `Export health data in various formats.

FORMATS:

  json       Full export of observations, manual entries and the import log
             (restore with 'healthdash import json')
  yaml       The same content, human-readable
  markdown   One table per metric

EXAMPLES:

  healthdash export json -o backup.json
  healthdash export markdown --metric steps --since 2024-11-01`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"json", "yaml", "markdown"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)

			switch args[0] {
			case "json":
				data, err = storage.ExportJSON(cmd.Context(), a.repo)
			case "yaml":
				data, err = storage.ExportYAML(cmd.Context(), a.repo)
			case "markdown":
				var m *models.Metric
				if metric != "" {
					parsed, perr := models.ParseMetric(metric)
					if perr != nil {
						return perr
					}
					m = &parsed
				}
				var sinceDate *models.Date
				if since != "" {
					d, perr := models.ParseDate(since)
					if perr != nil {
						return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", since)
					}
					sinceDate = &d
				}
				var md string
				md, err = storage.ExportMarkdown(cmd.Context(), a.repo, m, sinceDate)
				data = []byte(md)
			default:
				return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", args[0])
			}
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			if err := writeOutput(cmd.OutOrStdout(), output, data); err != nil {
				return err
			}
			if output != "" {
				color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "✓ Exported to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&metric, "metric", "m", "", "only this metric (markdown only)")
	cmd.Flags().StringVar(&since, "since", "", "only include data since date (markdown only, YYYY-MM-DD)")
	return cmd
}
