// ABOUTME: CLI commands for the HTTP server and the MCP stdio server.
// ABOUTME: Both run until interrupted and share the repository opened by the root command.
package main

import (
	"github.com/harperreed/healthdash/internal/mcp"
	"github.com/harperreed/healthdash/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server for uploads and dashboards.

ENDPOINTS:

  POST   /upload                      multipart CSV upload (file, subject, date_column), returns column stats
  GET    /dashboard                   HTML dashboard (subject, from, to)
  GET    /api/dashboard               composite and plotly figure as JSON
  GET    /api/summary                 plain-text summary
  GET    /api/observations/{metric}   stored values for one metric
  DELETE /api/observations            delete by subject/metric, or all=true
  GET    /api/metrics                 stored metrics and subjects
  GET    /api/manual                  manual entries (POST to add)
  DELETE /api/manual/last             remove the newest manual entry
  GET    /api/imports                 import log
  GET    /metrics                     Prometheus metrics
  GET    /healthz                     liveness

EXAMPLES:

  healthdash serve
  healthdash serve --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.GetServerAddr()
			}
			dash, err := a.dashboardService()
			if err != nil {
				return err
			}

			srv := server.New(a.repo, dash, server.Options{
				Addr:     addr,
				Subject:  a.cfg.GetSubject(),
				Metrics:  a.metrics,
				Gatherer: a.registry,
			})
			err = srv.ListenAndServe(cmd.Context())
			// the server closes the repository on its way out
			a.repo = nil
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: [server] addr or 127.0.0.1:8080)")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long: `Start the Model Context Protocol (MCP) server over stdin/stdout.

CONFIGURATION:

  {
    "mcpServers": {
      "healthdash": {
        "command": "healthdash",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  import_csv            Import CSV text for a subject
  list_observations     List stored values for one metric
  delete_observations   Delete by subject and/or metric
  render_dashboard      Build the composite dashboard as plotly JSON
  add_manual            Record a hand-entered value
  remove_last_manual    Remove the newest manual entry

AVAILABLE RESOURCES:

  health://dashboard    Composite dashboard across all subjects
  health://summary      One line per stored value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dash, err := a.dashboardService()
			if err != nil {
				return err
			}
			srv, err := mcp.NewServer(a.repo, dash, mcp.Options{
				Subject: a.cfg.GetSubject(),
				Metrics: a.metrics,
			})
			if err != nil {
				return err
			}
			return srv.Serve(cmd.Context())
		},
	}
}
