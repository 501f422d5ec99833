// ABOUTME: CLI commands for deleting observations by subject and metric, or everything.
// ABOUTME: drop-all requires --yes because there is no undo.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/healthdash/internal/models"
	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	var (
		subject string
		metric  string
	)

	cmd := &cobra.Command{
		Use:     "delete",
		Aliases: []string{"del", "rm"},
		Short:   "Delete observations",
		Long: `Delete every observation matching --subject and/or --metric.

At least one filter is required. Use 'healthdash drop-all' to clear the store.

EXAMPLES:

  healthdash delete --subject bob               # All of bob's data
  healthdash delete --metric custom:cigarettes  # One metric for everybody
  healthdash delete -s alice -m steps           # One series

CAUTION:

  This permanently deletes the observations. There is no undo.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" && metric == "" {
				return fmt.Errorf("specify --subject, --metric, or both")
			}

			var m *models.Metric
			if metric != "" {
				parsed, err := models.ParseMetric(metric)
				if err != nil {
					return err
				}
				m = &parsed
			}

			n, err := a.repo.Delete(cmd.Context(), subject, m)
			if err != nil {
				return fmt.Errorf("failed to delete observations: %w", err)
			}

			color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "✗ Deleted %d observations\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "delete this subject's observations")
	cmd.Flags().StringVarP(&metric, "metric", "m", "", "delete this metric's observations")
	return cmd
}

func newDropAllCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "drop-all",
		Short: "Delete every observation",
		Long: `Delete every stored observation for every subject and metric.

Manual entries and the import log are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to drop all observations without --yes")
			}
			if err := a.repo.DropAll(cmd.Context()); err != nil {
				return fmt.Errorf("failed to drop observations: %w", err)
			}
			color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "✗ Dropped all observations")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
