package historycmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/config"
)

const listLongDesc string = `List recent generation sessions, most recent first.

Each line shows the session ID, terminal state, chunk count, and the start of
the prompt. Use "spool history show <id>" to see the full content.

Examples:
  spool history list
  spool history list --limit 50`

const listShortDesc string = "List recent generation sessions"

type listCommander struct {
	limit         int
	historyDriver string
	sqlitePath    string
	postgresDSN   string
}

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, configDir, err := initHistoryViper(cmd)
			if err != nil {
				return err
			}
			return cmder.run(v, configDir)
		},
	}

	cmd.Flags().IntVar(&cmder.limit, "limit", 20, "Maximum number of sessions to list")

	fs := config.DefaultFlagSet()
	config.AddStringFlag(cmd, fs, config.FlagHistoryDriver, &cmder.historyDriver)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgres, &cmder.postgresDSN)

	return cmd
}

func (c *listCommander) run(v *viper.Viper, configDir string) error {
	ctx := context.Background()

	driver, err := openHistoryDriver(ctx, v, configDir)
	if err != nil {
		return err
	}
	defer driver.Close()

	records, err := driver.List(ctx, c.limit)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(records) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No sessions recorded yet. Run \"spool generate\" first."))
		return nil
	}

	fmt.Println()
	for _, record := range records {
		fmt.Printf("  %s  %-9s  %s  %s\n",
			cliui.IDStyle.Render(cliui.Truncate(record.ID, 8)),
			cliui.StateMark(record.State),
			cliui.DimStyle.Render(fmt.Sprintf("%3d chunks", record.ChunkCount)),
			cliui.Truncate(record.Prompt, 48),
		)
	}
	fmt.Println()

	return nil
}
