// ABOUTME: CLI command printing descriptive statistics per stored metric.
// ABOUTME: Count, mean, median, sample standard deviation and range; absent values are excluded.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/healthdash/internal/aggregate"
	"github.com/harperreed/healthdash/internal/models"
	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		subject string
		from    string
		to      string
	)

	cmd := &cobra.Command{
		Use:   "stats [metric]",
		Short: "Summarize stored values per metric",
		Long: `Summarize stored values per metric: count, mean, median, sample standard
deviation, minimum and maximum. Absent values are counted separately and
left out of every measure. A dash means there were too few values.

EXAMPLES:

  healthdash stats                          # Every stored metric, all subjects
  healthdash stats steps --subject alice    # One metric for one subject
  healthdash stats --from 2024-11-01        # Since November`,
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
			bold := color.New(color.Bold)
			shown := 0
			for _, m := range metrics {
				obs, err := a.repo.List(cmd.Context(), subject, m, r)
				if err != nil {
					return fmt.Errorf("failed to list %s: %w", m, err)
				}
				if len(obs) == 0 {
					continue
				}
				s := aggregate.Describe(aggregate.FromObservations(m.Key(), obs))
				unit := m.Unit()
				bold.Fprintln(out, s.Name)
				fmt.Fprintf(out, "  count   %d (%d absent)\n", s.Count, s.Absent)
				fmt.Fprintf(out, "  mean    %s\n", formatValue(s.Mean, unit))
				fmt.Fprintf(out, "  median  %s\n", formatValue(s.Median, unit))
				fmt.Fprintf(out, "  std dev %s\n", formatValue(s.StdDev, unit))
				fmt.Fprintf(out, "  range   %s to %s\n", formatValue(s.Min, unit), formatValue(s.Max, unit))
				shown++
			}

			if shown == 0 {
				fmt.Fprintln(out, "No observations found.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "only this subject (default: all)")
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	return cmd
}
