// Package initcmder provides the init command for initializing a local .spool
// directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/config"
)

const (
	dirName = ".spool"
)

const initLongDesc string = `Initialize a new .spool/ directory in the current working directory.

Creates a local .spool/ directory that takes precedence over the default
~/.spool/ directory for configuration, history storage, and the last-session
pointer. This is useful for maintaining separate spool state per project.

With --preset, a config.toml seeded from the named preset is written into the
new directory.

Examples:
  spool init
  spool init --preset local`

const initShortDesc string = "Initialize a local .spool/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Seed config.toml from a preset (%s)", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	alreadyExists := err == nil && info.IsDir()

	if !alreadyExists {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .spool directory: %w", err)
		}
	}

	if preset != "" {
		cfg, err := config.PresetConfig(preset)
		if err != nil {
			return err
		}

		err = cliui.Step(os.Stdout, fmt.Sprintf("Writing %s preset to %s", preset, filepath.Join(dir, "config.toml")), func() error {
			cfger, err := config.NewConfiger(dir)
			if err != nil {
				return fmt.Errorf("preparing config: %w", err)
			}
			if err := cfger.SaveConfig(cfg); err != nil {
				return fmt.Errorf("writing preset config: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if alreadyExists {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	fmt.Printf("Initialized .spool directory: %s\n", dir)
	return nil
}
