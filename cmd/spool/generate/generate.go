// Package generatecmder provides the generate command for streaming a code
// generation from the configured endpoint.
package generatecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/client"
	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/dotdir"
	"github.com/papercomputeco/spool/pkg/gen"
	"github.com/papercomputeco/spool/pkg/history"
	"github.com/papercomputeco/spool/pkg/history/inmemory"
	"github.com/papercomputeco/spool/pkg/history/postgres"
	"github.com/papercomputeco/spool/pkg/history/sqlite"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/recorder"
	"github.com/papercomputeco/spool/pkg/session"
)

const generateLongDesc string = `Stream a code generation from the configured endpoint.

The prompt is sent to the endpoint's /v1/generate route and the response is
streamed to the terminal chunk by chunk. Press Ctrl+C to cancel mid-stream;
everything received so far is kept and recorded in history.

Finished sessions are stored in the history database so they can be revisited
with "spool history".

Examples:
  spool generate "write a fizzbuzz in python"
  spool generate --model small-coder --render "explain this regex: ^a+$"
  spool generate --endpoint http://localhost:8077 "hello world in go"`

const generateShortDesc string = "Stream a generation from the configured endpoint"

type generateCommander struct {
	endpoint       string
	apiKey         string
	model          string
	connectTimeout string
	chunkTimeout   string
	historyDriver  string
	sqlitePath     string
	postgresDSN    string
	render         bool
	noHistory      bool
	debug          bool
	configDir      string

	v      *viper.Viper
	logger *zap.Logger
}

func NewGenerateCmd() *cobra.Command {
	cmder := &generateCommander{}

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: generateShortDesc,
		Long:  generateLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, err = cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %w", err)
			}

			cmder.v, err = config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}

			fs := config.DefaultFlagSet()
			config.BindRegisteredFlags(cmder.v, cmd, fs, []string{
				config.FlagEndpoint,
				config.FlagAPIKey,
				config.FlagModel,
				config.FlagConnectTimeout,
				config.FlagChunkTimeout,
				config.FlagHistoryDriver,
				config.FlagSQLite,
				config.FlagPostgres,
			})

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(strings.Join(args, " "))
		},
	}

	fs := config.DefaultFlagSet()
	config.AddStringFlag(cmd, fs, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, fs, config.FlagAPIKey, &cmder.apiKey)
	config.AddStringFlag(cmd, fs, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, fs, config.FlagConnectTimeout, &cmder.connectTimeout)
	config.AddStringFlag(cmd, fs, config.FlagChunkTimeout, &cmder.chunkTimeout)
	config.AddStringFlag(cmd, fs, config.FlagHistoryDriver, &cmder.historyDriver)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgres, &cmder.postgresDSN)
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render the finished generation as markdown")
	cmd.Flags().BoolVar(&cmder.noHistory, "no-history", false, "Skip recording this session in history")

	return cmd
}

func (c *generateCommander) run(prompt string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cl, err := client.New(client.Config{
		Endpoint:       c.v.GetString("client.endpoint"),
		APIKey:         c.v.GetString("client.api_key"),
		Model:          c.v.GetString("client.model"),
		ConnectTimeout: c.v.GetDuration("client.connect_timeout"),
		ChunkTimeout:   c.v.GetDuration("client.chunk_timeout"),
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	var pool *recorder.Pool
	if !c.noHistory {
		driver, err := c.newHistoryDriver(context.Background())
		if err != nil {
			return err
		}
		defer driver.Close()

		pool, err = recorder.NewPool(&recorder.Config{
			Driver: driver,
			Logger: c.logger,
		})
		if err != nil {
			return fmt.Errorf("creating recorder: %w", err)
		}
	}

	startedAt := time.Now()

	handler := session.Handler{
		OnChunk: func(chunk gen.Chunk) {
			if chunk.Type.Control() {
				return
			}
			fmt.Print(chunk.Content)
		},
	}

	sess, err := cl.Generate(context.Background(), client.GenerateRequest{
		Prompt: prompt,
	}, handler)
	if err != nil {
		return err
	}

	// First Ctrl+C cancels the stream; the session keeps what it has.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		signal.Stop(sigChan)
		sess.Cancel()
	}()

	<-sess.Done()
	endedAt := time.Now()
	fmt.Println()

	if pool != nil {
		pool.Enqueue(recorder.Job{Record: &history.Record{
			ID:         sess.ID(),
			Model:      c.v.GetString("client.model"),
			Prompt:     prompt,
			State:      sess.State().String(),
			Reason:     sess.TerminationReason(),
			Content:    sess.Content(),
			ChunkCount: sess.ChunkCount(),
			StartedAt:  startedAt,
			EndedAt:    endedAt,
		}})
		pool.Close()

		if err := dotdir.NewManager().SaveLastSession(&dotdir.LastSession{
			SessionID: sess.ID(),
			State:     sess.State().String(),
			EndedAt:   endedAt,
		}, c.configDir); err != nil {
			c.logger.Warn("could not save last session pointer", zap.Error(err))
		}
	}

	return c.report(sess, endedAt.Sub(startedAt))
}

// report prints the terminal summary line and, for failures, the classified
// error with a retry hint when the failure class allows one.
func (c *generateCommander) report(sess *session.Session, elapsed time.Duration) error {
	switch sess.State() {
	case session.StateCompleted:
		fmt.Printf("\n  %s %s %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("%d chunks in %s", sess.ChunkCount(), cliui.FormatDuration(elapsed))),
			cliui.DimStyle.Render("("+sess.TerminationReason()+")"),
		)

		if c.render {
			rendered, err := cliui.RenderMarkdown(sess.Content())
			if err != nil {
				c.logger.Warn("markdown render failed", zap.Error(err))
				return nil
			}
			fmt.Println(rendered)
		}
		return nil

	case session.StateCancelled:
		fmt.Printf("\n  %s %s\n",
			cliui.CancelMark,
			cliui.DimStyle.Render(fmt.Sprintf("cancelled after %d chunks, partial result kept", sess.ChunkCount())),
		)
		return nil

	default:
		cerr := sess.Err()
		if cerr == nil {
			return fmt.Errorf("generation failed")
		}

		fmt.Printf("\n  %s %s\n", cliui.FailMark, cerr.Error())
		if cerr.Retryable() {
			fmt.Printf("  %s\n", cliui.DimStyle.Render("This failure is transient. Re-run the command to retry."))
		}
		return fmt.Errorf("generation failed: %s", cerr.Kind)
	}
}

// newHistoryDriver opens the history backend selected by config.
func (c *generateCommander) newHistoryDriver(ctx context.Context) (history.Driver, error) {
	switch c.v.GetString("history.driver") {
	case "postgres":
		dsn := c.v.GetString("history.postgres_dsn")
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
		path := c.v.GetString("history.sqlite_path")
		if path == "" {
			dir, err := dotdir.NewManager().Target(c.configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving history dir: %w", err)
			}
			path = filepath.Join(dir, "history.sqlite")
		}
		driver, err := sqlite.NewDriver(path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite history: %w", err)
		}
		c.logger.Debug("using sqlite history", zap.String("path", path))
		return driver, nil
	}
}
