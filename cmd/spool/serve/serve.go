// Package servecmder provides the serve command for running the local mock
// generation server.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/mockgen"
)

const serveLongDesc string = `Run a local mock generation server.

The server speaks the same wire protocol "spool generate" consumes: POST
/v1/generate answers with an SSE stream of scripted frames. Use it to develop
against a predictable endpoint or to exercise timeout and error handling.

With --script, frames come from a TOML script file that is hot-reloaded on
change, so you can edit the canned response while the server runs.

Examples:
  spool serve
  spool serve --listen :9000
  spool serve --script ./slow-stream.toml
  spool serve --log-file ./serve.log`

const serveShortDesc string = "Run a local mock generation server"

type serveCommander struct {
	listen  string
	script  string
	logFile string
	debug   bool

	v      *viper.Viper
	logger *slog.Logger
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, err := cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %w", err)
			}

			cmder.v, err = config.InitViper(configDir)
			if err != nil {
				return err
			}

			fs := config.DefaultFlagSet()
			config.BindRegisteredFlags(cmder.v, cmd, fs, []string{
				config.FlagServeListen,
				config.FlagScript,
			})

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	fs := config.DefaultFlagSet()
	config.AddStringFlag(cmd, fs, config.FlagServeListen, &cmder.listen)
	config.AddStringFlag(cmd, fs, config.FlagScript, &cmder.script)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write logs to this file")

	return cmd
}

func (c *serveCommander) run() error {
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		// Pretty logs on the terminal, structured JSON in the file.
		c.logger = logger.Multi(
			logger.New(logger.WithDebug(c.debug), logger.WithPretty(true)),
			logger.New(logger.WithDebug(c.debug), logger.WithJSON(true), logger.WithWriter(f)),
		)
	} else {
		c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	}

	server, err := mockgen.New(mockgen.Config{
		ListenAddr: c.v.GetString("serve.listen"),
		APIKey:     c.v.GetString("serve.api_key"),
		ScriptPath: c.v.GetString("serve.script"),
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating mock server: %w", err)
	}
	defer server.Close()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("mock server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}
