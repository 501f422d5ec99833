// ABOUTME: CLI commands for hand-entered (date, metric, value) rows.
// ABOUTME: Entries are free-form labels kept apart from the per-metric series.
package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/healthdash/internal/models"
	"github.com/spf13/cobra"
)

func newManualCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Manage hand-entered values",
		Long: `Record values that do not come from a file or the fitness API.

EXAMPLES:

  healthdash manual add 2024-11-01 weight 72.5
  healthdash manual list
  healthdash manual undo       # Remove the most recent entry`,
	}
	cmd.AddCommand(newManualAddCmd(a), newManualListCmd(a), newManualUndoCmd(a))
	return cmd
}

func newManualAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <date> <metric> <value>",
		Short: "Add a manual entry",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := models.ParseDate(args[0])
			if err != nil {
				return err
			}
			metric := strings.TrimSpace(args[1])
			if metric == "" {
				return &models.ValidationError{Field: "metric", Message: "metric is required"}
			}
			value, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[2], err)
			}

			entry := models.NewManualEntry(date, metric, value)
			if err := a.repo.AddManual(cmd.Context(), entry); err != nil {
				return fmt.Errorf("failed to add entry: %w", err)
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Added %s %s %g\n", entry.Date, entry.Metric, entry.Value)
			return nil
		},
	}
}

func newManualListCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List manual entries, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.repo.ListManual(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list entries: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No manual entries.")
				return nil
			}

			faint := color.New(color.Faint)
			for _, e := range entries {
				fmt.Fprintf(out, "%s %s %s %g\n",
					faint.Sprint(e.ID.String()[:8]),
					e.Date,
					padRight(e.Metric, 16),
					e.Value)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max number of entries (0 for all)")
	return cmd
}

func newManualUndoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Remove the most recent manual entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.repo.RemoveLastManual(cmd.Context())
			if errors.Is(err, models.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No manual entries to remove.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to remove entry: %w", err)
			}

			color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "✗ Removed %s %s %g\n", e.Date, e.Metric, e.Value)
			return nil
		},
	}
}
