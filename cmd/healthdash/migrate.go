// ABOUTME: CLI command for copying data between the SQLite and Badger backends.
// ABOUTME: Refuses to write into a destination that already holds data unless forced.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/harperreed/healthdash/internal/config"
	"github.com/harperreed/healthdash/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newMigrateCmd(a *app) *cobra.Command {
	var (
		to         string
		dest       string
		force      bool
		setDefault bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy all data to another storage backend",
		Long: `Copy observations, manual entries and the import log from the current
backend into another one.

The destination lives under --dest (default: the current data directory).
SQLite uses healthdash.db and Badger uses the badger/ directory, so both can
share a data directory.

IMPORTANT:

  - Observations already in the destination are skipped, never overwritten
  - A destination that already holds data is refused unless --force is given
  - The source is left untouched

EXAMPLES:

  healthdash migrate --to badger
  healthdash migrate --to sqlite --dest /mnt/backup --set-default`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if to == a.cfg.GetBackend() && (dest == "" || dest == a.cfg.GetDataDir()) {
				return fmt.Errorf("source and destination are the same %s store", to)
			}
			if dest == "" {
				dest = a.cfg.GetDataDir()
			}
			dest = config.ExpandPath(dest)

			inUse, err := destinationInUse(to, dest)
			if err != nil {
				return err
			}
			if inUse && !force {
				return fmt.Errorf("destination %s store in %s already has data (use --force to merge into it)", to, dest)
			}

			if err := os.MkdirAll(dest, 0750); err != nil {
				return fmt.Errorf("failed to create destination: %w", err)
			}
			dst, err := config.OpenBackend(to, dest)
			if err != nil {
				return fmt.Errorf("failed to open destination: %w", err)
			}
			defer func() { err = multierr.Append(err, dst.Close()) }()

			summary, err := storage.MigrateData(cmd.Context(), a.repo, dst)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(out, "✓ Migrated %s -> %s (%s)\n", a.cfg.GetBackend(), to, dest)
			fmt.Fprintf(out, "  Observations: %d new, %d already present\n", summary.Observations, summary.Skipped)
			fmt.Fprintf(out, "  Manual entries: %d\n", summary.Manual)
			fmt.Fprintf(out, "  Import records: %d\n", summary.Imports)

			if setDefault {
				a.cfg.Backend = to
				a.cfg.DataDir = dest
				if err := a.cfg.Save(); err != nil {
					return fmt.Errorf("failed to save config: %w", err)
				}
				fmt.Fprintf(out, "  Config now uses %s\n", to)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "badger", "destination backend: sqlite or badger")
	cmd.Flags().StringVar(&dest, "dest", "", "destination data directory (default: current data dir)")
	cmd.Flags().BoolVar(&force, "force", false, "merge into a destination that already has data")
	cmd.Flags().BoolVar(&setDefault, "set-default", false, "switch the config to the destination afterwards")
	return cmd
}

// destinationInUse reports whether the backend's files under dir already exist.
func destinationInUse(backend, dir string) (bool, error) {
	switch backend {
	case "sqlite":
		_, err := os.Stat(filepath.Join(dir, "healthdash.db"))
		if os.IsNotExist(err) {
			return false, nil
		}
		return err == nil, err
	case "badger":
		return storage.IsDirNonEmpty(filepath.Join(dir, "badger"))
	default:
		return false, fmt.Errorf("unknown backend: %q", backend)
	}
}
