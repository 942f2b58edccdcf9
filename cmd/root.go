// Package cmd defines and implements the CLI commands for the runwatch executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/runwatch/internal/app"
	"github.com/JakeFAU/runwatch/internal/config"
	"github.com/JakeFAU/runwatch/internal/logging"
	"github.com/JakeFAU/runwatch/internal/server"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	server.Services
	Close(ctx context.Context)
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.NewApp(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "runwatch",
		Short: "Follow a remote run or image build live from the terminal.",
		Long: `runwatch subscribes to the logs, progress and heartbeat event streams of a
run (or image build) and renders a progress bar, a colored log pane and the
follow-up "next step" control. A missing heartbeat turns the bar into an
alert until the beats come back.`,
		SilenceUsage: true,

		// Config is loaded here so that the subcommand's own flags take part.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithFlags(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			// Store the app instance in the context for subcommands to use.
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		// This hook ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close(context.WithoutCancel(cmd.Context()))
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./runwatch.yaml or $HOME/.runwatch/runwatch.yaml)")
	cmd.PersistentFlags().String("log-level", "", "minimum log level (debug, info, warn, error)")

	cmd.AddCommand(newWatchCmd(), newConfigCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logger, lerr := logging.New(logging.Options{Development: true})
		if lerr != nil {
			panic(err)
		}
		logger.Fatal("Command execution failed", zap.Error(err))
	}
}
