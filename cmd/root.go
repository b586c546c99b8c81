// Package cmd defines and implements the CLI commands for the quizchain
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/quizchain/internal/config"
	"github.com/JakeFAU/quizchain/internal/logging"
	"github.com/JakeFAU/quizchain/internal/quiz"
	"github.com/JakeFAU/quizchain/internal/server"
)

// runtimeKeyType is the key for storing the runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// App defines the application interface that commands use. Tests inject a
// fake through newApp.
type App interface {
	Run(ctx context.Context) error
	RunOnce(ctx context.Context, req quiz.WorkflowRequest) (quiz.WorkflowResult, error)
	Close(ctx context.Context) error
}

type runtime struct {
	app    App
	cfg    config.Config
	logger *zap.Logger
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return server.Build(ctx, cfg, logger)
}

// newLogger is swapped in tests to keep output quiet.
var newLogger = logging.New

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "quizchain",
		Short: "Solves chained web quizzes with a headless browser.",
		Long: `quizchain renders quiz pages in headless Chrome, derives an answer from
the page or a linked CSV, spreadsheet or PDF, submits it and follows the
next URL the grader returns until the chain ends.`,
		SilenceUsage: true,

		// Runs after flags are parsed but before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var opts []config.Option
			if f := cmd.Flags().Lookup("secret"); f != nil && f.Changed {
				opts = append(opts, config.WithSecret(f.Value.String()))
			}
			cfg, err := config.Load(cfgFile, opts...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := newLogger(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)

			app, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, &runtime{
				app:    app,
				cfg:    cfg,
				logger: logger,
			}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return
			}
			// serve closes the app itself on shutdown.
			if cmd.Name() != "serve" {
				if cerr := rt.app.Close(cmd.Context()); cerr != nil {
					rt.logger.Warn("close failed", zap.Error(cerr))
				}
			}
			_ = rt.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); env vars with the QUIZ_ prefix override it")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRunCmd())
	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("application services not initialized")
	}
	return rt, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
