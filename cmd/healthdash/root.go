// ABOUTME: Root Cobra command for the healthdash CLI.
// ABOUTME: Loads config, sets up logging and metrics, and opens the repository before each command.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/healthdash/internal/config"
	"github.com/harperreed/healthdash/internal/dashboard"
	"github.com/harperreed/healthdash/internal/logging"
	"github.com/harperreed/healthdash/internal/storage"
	"github.com/harperreed/healthdash/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// skipStorage marks commands that run without opening the repository.
const skipStorage = "skip-storage"

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	backend    string
	dataDir    string
	logLevel   string

	cfg      *config.Config
	repo     storage.Repository
	registry *prometheus.Registry
	metrics  *telemetry.Manager
}

// Execute runs the CLI with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd, a := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	return multierr.Append(err, a.close())
}

// newRootCmd builds a fresh command tree. The caller closes the returned app
// once execution finishes, whether or not the command failed.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "healthdash",
		Short: "Daily health metrics pipeline and dashboard",
		Long: `Healthdash ingests daily health metrics, stores one value per subject, day
and metric, and renders a multi-panel dashboard.

WHAT IT TRACKS:

  Built-in   steps, heart_rate, calories, sleep_minutes
  Custom     any numeric CSV column (rbc, cigarettes, weight, ...)
  Manual     hand-entered (date, metric, value) rows

QUICK START:

  $ healthdash import csv fitbit.csv --subject alice   # Load a CSV export
  $ healthdash list steps --subject alice              # See stored values
  $ healthdash dashboard -o dashboard.html             # Render the dashboard
  $ healthdash serve                                   # Upload + dashboard over HTTP

FITNESS API:

  $ healthdash fetch login                 # Authorize once with client_secret.json
  $ healthdash fetch pull --days 30        # Pull daily buckets for every metric

MCP INTEGRATION:

  Run 'healthdash mcp' to start the Model Context Protocol server over stdio.

  {
    "mcpServers": {
      "healthdash": { "command": "healthdash", "args": ["mcp"] }
    }
  }

CONFIGURATION:

  Settings live in ~/.config/healthdash/config.toml (backend, data_dir,
  subject, [log], [server], [fit], [dashboard], [[charts]]).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: ~/.config/healthdash/config.toml)")
	flags.StringVar(&a.backend, "backend", "", "storage backend: sqlite or badger")
	flags.StringVar(&a.dataDir, "data-dir", "", "data directory")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(
		newImportCmd(a),
		newFetchCmd(a),
		newListCmd(a),
		newDeleteCmd(a),
		newDropAllCmd(a),
		newManualCmd(a),
		newDashboardCmd(a),
		newExportCmd(a),
		newMigrateCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newImportsCmd(a),
		newStatsCmd(a),
	)
	return rootCmd, a
}

// setup loads config, applies flag overrides, configures logging and opens storage.
func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if a.backend != "" {
		a.cfg.Backend = a.backend
	}
	if a.dataDir != "" {
		a.cfg.DataDir = a.dataDir
	}
	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}

	logging.Setup(logging.Params{
		Level:    a.cfg.Log.Level,
		File:     config.ExpandPath(a.cfg.Log.File),
		JSON:     a.cfg.Log.JSON,
		ToStdout: a.cfg.Log.Stdout,
	})

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector())
	a.metrics = telemetry.NewManager("healthdash", "", a.registry)

	if cmd.Annotations[skipStorage] == "true" {
		return nil
	}

	a.repo, err = a.cfg.OpenStorage()
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	return nil
}

func (a *app) close() error {
	if a.repo == nil {
		return nil
	}
	err := a.repo.Close()
	a.repo = nil
	return err
}

// dashboardService builds a dashboard over the open repository with configured charts.
func (a *app) dashboardService() (*dashboard.Service, error) {
	return dashboard.NewService(a.repo, dashboard.Options{
		Title:   a.cfg.Dashboard.Title,
		Columns: a.cfg.Dashboard.Columns,
		Height:  a.cfg.Dashboard.Height,
		Charts:  a.cfg.Charts,
		Metrics: a.metrics,
	})
}

// subject returns the flag value or the configured default.
func (a *app) subject(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.GetSubject()
}

// writeOutput writes data to path, or to w when path is empty.
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
