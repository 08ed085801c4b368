package historycmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/dotdir"
	"github.com/papercomputeco/spool/pkg/history"
)

const showLongDesc string = `Show one recorded generation session.

Prints the session's prompt, terminal state, termination reason, and the full
accumulated content. With no ID the most recent session is shown.

Examples:
  spool history show
  spool history show 2f1c9c4e-31ab-47d2-9c6f-8f1f9f2f3a4b
  spool history show --render`

const showShortDesc string = "Show one recorded generation session"

type showCommander struct {
	render        bool
	historyDriver string
	sqlitePath    string
	postgresDSN   string
}

func newShowCmd() *cobra.Command {
	cmder := &showCommander{}

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, configDir, err := initHistoryViper(cmd)
			if err != nil {
				return err
			}

			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return cmder.run(v, configDir, id)
		},
	}

	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render the content as markdown")

	fs := config.DefaultFlagSet()
	config.AddStringFlag(cmd, fs, config.FlagHistoryDriver, &cmder.historyDriver)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgres, &cmder.postgresDSN)

	return cmd
}

func (c *showCommander) run(v *viper.Viper, configDir, id string) error {
	ctx := context.Background()

	if id == "" {
		last, err := dotdir.NewManager().LoadLastSession(configDir)
		if err != nil {
			return fmt.Errorf("loading last session pointer: %w", err)
		}
		if last == nil {
			return errors.New("no session recorded yet; pass an ID or run \"spool generate\" first")
		}
		id = last.SessionID
	}

	driver, err := openHistoryDriver(ctx, v, configDir)
	if err != nil {
		return err
	}
	defer driver.Close()

	record, err := driver.Get(ctx, id)
	if err != nil {
		var notFound history.ErrNotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("no session with ID %q", id)
		}
		return fmt.Errorf("loading session: %w", err)
	}

	printRecord(record, c.render)
	return nil
}

func printRecord(record *history.Record, render bool) {
	fmt.Println()
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Session:"), cliui.IDStyle.Render(record.ID))
	fmt.Printf("  %s %s %s\n",
		cliui.KeyStyle.Render("State:"),
		cliui.StateMark(record.State),
		cliui.DimStyle.Render("("+record.Reason+")"),
	)
	if record.Model != "" {
		fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Model:"), cliui.NameStyle.Render(record.Model))
	}
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Prompt:"), record.Prompt)
	fmt.Printf("  %s %d chunks, %s\n",
		cliui.KeyStyle.Render("Chunks:"),
		record.ChunkCount,
		cliui.DimStyle.Render(cliui.FormatDuration(record.EndedAt.Sub(record.StartedAt))),
	)
	fmt.Println()

	if record.Content == "" {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("<no content>"))
		return
	}

	if render {
		rendered, err := cliui.RenderMarkdown(record.Content)
		if err == nil {
			fmt.Println(rendered)
			return
		}
	}
	fmt.Println(record.Content)
	fmt.Println()
}
