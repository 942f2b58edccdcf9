package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/runwatch/internal/server"
	"github.com/JakeFAU/runwatch/internal/view"
)

type watchOptions struct {
	tui     bool
	noColor bool
}

// newWatchCmd creates the 'watch' subcommand, which follows one run until
// interrupted.
func newWatchCmd() *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a run's progress, logs and heartbeats",
		Long: `Subscribes to the <category>_logs, <category>_progress and
<category>_heartbeats channels and renders them until interrupted. With
--server the page state is also served over HTTP.`,
		Example: `  runwatch watch --base-url http://localhost:5000/stream
  runwatch watch --category imageBuild --tui --server --port 9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.String("base-url", "", "event stream endpoint; channels are selected with ?channel=")
	f.String("category", "run", "stream category (run or imageBuild)")
	f.String("initial-progress", "", "initial progress snapshot as JSON")
	f.String("history-file", "", "log file rendered before live lines")
	f.String("action-url", "", "base URL the next-step control navigates to")
	f.Int("max-entries", 0, "log entries to keep (0 keeps all)")
	f.Bool("server", false, "serve the page state over HTTP")
	f.Int("port", 8080, "HTTP port used with --server")
	f.Bool("tracing", false, "record spans for deliveries and actions")
	f.BoolVar(&opts.tui, "tui", false, "use the interactive full-screen view")
	f.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	return cmd
}

func runWatch(cmd *cobra.Command, opts *watchOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	view.ConfigureColor(!opts.noColor)

	runner, err := server.Build(appInstance, server.Options{Out: cmd.OutOrStdout(), TUI: opts.tui})
	if err != nil {
		return fmt.Errorf("build monitor: %w", err)
	}
	if err := runner.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	appInstance.GetLogger().Info("Watch command finished.", zap.String("monitor_id", runner.Monitor().ID()))
	return nil
}
