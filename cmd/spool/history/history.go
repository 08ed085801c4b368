// Package historycmder provides the history command for browsing recorded
// generation sessions.
package historycmder

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/dotdir"
	"github.com/papercomputeco/spool/pkg/history"
	"github.com/papercomputeco/spool/pkg/history/inmemory"
	"github.com/papercomputeco/spool/pkg/history/postgres"
	"github.com/papercomputeco/spool/pkg/history/sqlite"
)

const historyLongDesc string = `Browse recorded generation sessions.

Every finished generation (completed, cancelled, or failed) is recorded in the
history database along with its accumulated content and termination reason.

Use subcommands to list or inspect sessions:
  spool history list            List recent sessions
  spool history show [id]       Show one session (defaults to the last one)

Examples:
  spool history list
  spool history list --limit 50
  spool history show
  spool history show 2f1c9c4e --render`

const historyShortDesc string = "Browse recorded generation sessions"

func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())

	return cmd
}

// initHistoryViper loads config for a history subcommand and returns the
// resolved viper plus the config dir override.
func initHistoryViper(cmd *cobra.Command) (*viper.Viper, string, error) {
	configDir, err := cmd.Flags().GetString("config-dir")
	if err != nil {
		return nil, "", fmt.Errorf("could not get config-dir flag: %w", err)
	}

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, "", err
	}

	fs := config.DefaultFlagSet()
	config.BindRegisteredFlags(v, cmd, fs, []string{
		config.FlagHistoryDriver,
		config.FlagSQLite,
		config.FlagPostgres,
	})

	return v, configDir, nil
}

// openHistoryDriver opens the history backend selected by config.
func openHistoryDriver(ctx context.Context, v *viper.Viper, configDir string) (history.Driver, error) {
	switch v.GetString("history.driver") {
	case "postgres":
		dsn := v.GetString("history.postgres_dsn")
		if dsn == "" {
			return nil, fmt.Errorf("history.postgres_dsn is required for the postgres driver")
		}
		driver, err := postgres.NewDriver(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres history: %w", err)
		}
		return driver, nil

	case "inmemory":
		return inmemory.NewDriver(), nil

	default:
		path := v.GetString("history.sqlite_path")
		if path == "" {
			dir, err := dotdir.NewManager().Target(configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving history dir: %w", err)
			}
			path = filepath.Join(dir, "history.sqlite")
		}
		driver, err := sqlite.NewDriver(path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite history: %w", err)
		}
		return driver, nil
	}
}
