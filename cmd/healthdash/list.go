// ABOUTME: CLI commands for listing stored observations and the import log.
// ABOUTME: Values print one per line; absent values show as a dash.
package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/healthdash/internal/models"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var (
		subject string
		from    string
		to      string
		limit   int
	)

	cmd := &cobra.Command{
		Use:     "list [metric]",
		Aliases: []string{"ls", "l"},
		Short:   "List stored observations",
		Long: `List stored observations in date order.

OUTPUT FORMAT:

  Each line shows: DATE  SUBJECT  METRIC  VALUE UNIT

  A dash means the day exists but the value was missing in the source.
  Without a metric argument every stored metric is listed.

EXAMPLES:

  healthdash list                                  # Everything, newest 20 per metric
  healthdash list steps --subject alice            # Steps for one subject
  healthdash list custom:rbc --from 2024-11-01 -n 0 # All RBC values since November`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRange(from, to)
			if err != nil {
				return err
			}

			var metrics []models.Metric
			if len(args) == 1 {
				m, err := models.ParseMetric(args[0])
				if err != nil {
					return err
				}
				metrics = []models.Metric{m}
			} else {
				metrics, err = a.repo.Metrics(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list metrics: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			faint := color.New(color.Faint)
			found := 0
			for _, m := range metrics {
				obs, err := a.repo.List(cmd.Context(), subject, m, r)
				if err != nil {
					return fmt.Errorf("failed to list %s: %w", m, err)
				}
				if limit > 0 && len(obs) > limit {
					obs = obs[len(obs)-limit:]
				}
				for _, o := range obs {
					fmt.Fprintf(out, "%s %s %s %s\n",
						faint.Sprint(o.Date),
						padRight(o.SubjectID, 12),
						padRight(m.String(), 16),
						formatValue(o.Value, m.Unit()))
				}
				found += len(obs)
			}

			if found == 0 {
				fmt.Fprintln(out, "No observations found.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "only this subject (default: all)")
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "newest values per metric (0 for all)")
	return cmd
}

func newImportsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "imports",
		Short: "Show the import log",
		Long: `Show recent ingestion calls, newest first, with how many rows each call
received, inserted and skipped as already present.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := a.repo.ListImports(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list imports: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No imports recorded.")
				return nil
			}

			faint := color.New(color.Faint)
			for _, rec := range recs {
				fmt.Fprintf(out, "%s %s %s %s received %d, inserted %d, skipped %d\n",
					faint.Sprint(rec.CreatedAt.Local().Format("2006-01-02 15:04")),
					padRight(rec.Source, 7),
					padRight(rec.SubjectID, 12),
					faint.Sprint(rec.Metric),
					rec.Received, rec.Inserted, rec.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max number of records (0 for all)")
	return cmd
}

// parseRange turns optional --from/--to flags into an inclusive date range.
func parseRange(from, to string) (models.DateRange, error) {
	var r models.DateRange
	var err error
	if from != "" {
		if r.From, err = models.ParseDate(from); err != nil {
			return r, err
		}
	}
	if to != "" {
		if r.To, err = models.ParseDate(to); err != nil {
			return r, err
		}
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return r, &models.ValidationError{Field: "to", Message: "must not be before from"}
	}
	return r, nil
}

func formatValue(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return strings.TrimSpace(fmt.Sprintf("%.2f %s", *v, unit))
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}
