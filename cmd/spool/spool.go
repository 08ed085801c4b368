// Package spoolcmder
package spoolcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/spool/cmd/spool/config"
	generatecmder "github.com/papercomputeco/spool/cmd/spool/generate"
	historycmder "github.com/papercomputeco/spool/cmd/spool/history"
	initcmder "github.com/papercomputeco/spool/cmd/spool/init"
	servecmder "github.com/papercomputeco/spool/cmd/spool/serve"
	versioncmder "github.com/papercomputeco/spool/cmd/version"
)

const spoolLongDesc string = `Spool is a streaming client for code generation endpoints.

Stream a generation:
  spool generate "write a fizzbuzz in python"

Run a local mock endpoint for development:
  spool serve

Browse past sessions:
  spool history list
  spool history show`

const spoolShortDesc string = "Spool - Streaming Generation Client"

func NewSpoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spool",
		Short: spoolShortDesc,
		Long:  spoolLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .spool/ config directory")

	// Add subcommands
	cmd.AddCommand(generatecmder.NewGenerateCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
