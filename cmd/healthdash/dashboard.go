// ABOUTME: CLI command that renders the composite dashboard.
// ABOUTME: Writes a standalone HTML page, plotly JSON, or the plain-text summary.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/healthdash/internal/dashboard"
	"github.com/harperreed/healthdash/internal/render"
	"github.com/spf13/cobra"
)

func newDashboardCmd(a *app) *cobra.Command {
	var (
		subject string
		from    string
		to      string
		format  string
		output  string
	)

	cmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"dash"},
		Short:   "Render the dashboard",
		Long: `Render every configured chart into one composite figure.

FORMATS:

  html      Standalone page that loads plotly.js (default)
  json      The plotly figure: data and layout
  summary   One line per stored value: subject - date: value unit

Charts with no data in range show a "No data available" placeholder.

EXAMPLES:

  healthdash dashboard -o dashboard.html
  healthdash dashboard --format json --subject alice --from 2024-11-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRange(from, to)
			if err != nil {
				return err
			}
			dash, err := a.dashboardService()
			if err != nil {
				return err
			}
			req := dashboard.Request{Subject: subject, Range: r}

			var data []byte
			switch format {
			case "html":
				c, err := dash.Build(cmd.Context(), req)
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				if err := render.HTML(&buf, c); err != nil {
					return err
				}
				data = buf.Bytes()
			case "json":
				c, err := dash.Build(cmd.Context(), req)
				if err != nil {
					return err
				}
				data, err = json.MarshalIndent(c.Plotly(), "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode figure: %w", err)
				}
				data = append(data, '\n')
			case "summary":
				text, err := dash.Summary(cmd.Context(), req)
				if err != nil {
					return err
				}
				data = []byte(text)
			default:
				return fmt.Errorf("unknown format: %s (use html, json, or summary)", format)
			}

			if err := writeOutput(cmd.OutOrStdout(), output, data); err != nil {
				return err
			}
			if output != "" {
				color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "only this subject (default: all)")
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVarP(&format, "format", "f", "html", "output format: html, json, summary")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}
