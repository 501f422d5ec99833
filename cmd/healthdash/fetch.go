// ABOUTME: CLI commands for authorizing against and pulling from the fitness API.
// ABOUTME: login stores an OAuth token; pull fetches daily buckets and stores them.
package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/healthdash/internal/fitapi"
	"github.com/harperreed/healthdash/internal/ingest"
	"github.com/harperreed/healthdash/internal/models"
	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch daily aggregates from the fitness API",
		Long: `Fetch daily aggregates from the fitness API.

SETUP:

  1. Create an OAuth client of type "Desktop app" and download its JSON
     as ~/.config/healthdash/client_secret.json (or set [fit] client_secret).
  2. Run 'healthdash fetch login' once to store a refresh token.
  3. Run 'healthdash fetch pull' whenever you want fresh data.`,
	}
	cmd.AddCommand(newFetchLoginCmd(a), newFetchPullCmd(a))
	return cmd
}

func newFetchLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "login",
		Short:       "Authorize access to your fitness data",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipStorage: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := fitapi.NewAuthorizer(a.cfg.GetClientSecretPath(), a.cfg.GetTokenPath())
			if err != nil {
				return err
			}
			if _, err := auth.Login(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Token saved to %s\n", a.cfg.GetTokenPath())
			return nil
		},
	}
}

func newFetchPullCmd(a *app) *cobra.Command {
	var (
		subject string
		metrics []string
		days    int
	)

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull recent daily buckets and store them",
		Long: `Pull one daily bucket per metric for the --days complete days before today (UTC).

Today is left out because its bucket is still filling, and days without data
are not stored. Requests are split into windows of [fit] window_days days.
Days already stored are skipped, so pulling overlapping ranges is safe.

EXAMPLES:

  healthdash fetch pull                          # All four metrics, 30 days
  healthdash fetch pull --metric steps --days 7  # Just steps for a week`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			timeout, err := a.cfg.GetFitTimeout()
			if err != nil {
				return err
			}

			var wanted []models.Metric
			for _, name := range metrics {
				m, err := models.ParseMetric(name)
				if err != nil {
					return err
				}
				wanted = append(wanted, m)
			}

			auth, err := fitapi.NewAuthorizer(a.cfg.GetClientSecretPath(), a.cfg.GetTokenPath())
			if err != nil {
				return err
			}
			hc, err := auth.HTTPClient(cmd.Context())
			if err != nil {
				return err
			}

			client := fitapi.New(hc,
				fitapi.WithBaseURL(a.cfg.Fit.BaseURL),
				fitapi.WithTimeout(timeout),
				fitapi.WithWindowDays(a.cfg.GetFitWindowDays()),
				fitapi.WithMetrics(a.metrics),
			)

			to := models.DateOf(time.Now().UTC()).Time()
			from := to.AddDate(0, 0, -days)
			subj := a.subject(subject)
			out := cmd.OutOrStdout()

			for _, m := range wanted {
				obs, err := client.Fetch(cmd.Context(), subj, m, from, to)
				if err != nil {
					return fmt.Errorf("fetch %s: %w", m, err)
				}
				if len(obs) == 0 {
					fmt.Fprintf(out, "  %s: no days with data\n", m)
					continue
				}
				res, err := ingest.Store(cmd.Context(), a.repo, a.metrics, ingest.SourceFit, subj, obs)
				if err != nil {
					return fmt.Errorf("store %s: %w", m, err)
				}
				color.New(color.FgGreen).Fprintf(out, "✓ %s", m)
				fmt.Fprintf(out, "  %d days: %d new, %d already present\n", len(obs), res.Inserted, res.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject that owns the rows (default: config subject)")
	cmd.Flags().StringSliceVarP(&metrics, "metric", "m",
		[]string{"steps", "heart_rate", "calories", "sleep_minutes"}, "metrics to pull")
	cmd.Flags().IntVarP(&days, "days", "d", 30, "number of days to pull")
	return cmd
}
