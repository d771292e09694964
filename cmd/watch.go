package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mediasort/internal"
)

var settleFlag string

var watchCmd = &cobra.Command{
	Use:   "watch [source] [destination]",
	Short: "Import a folder, then keep importing files as they appear",
	Long: `Run one import of the source folder, then watch it and ingest new files
once they have stopped changing for the settle delay. Stop with Ctrl-C.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}
		applyImportFlags(cmd, conf, args)
		if cmd.Flags().Changed("settle") {
			d, err := parseSettle(settleFlag)
			if err != nil {
				return err
			}
			conf.WatchSettle = d
		}
		if conf.Source == "" || conf.Destination == "" {
			return fmt.Errorf("missing source or destination and no defaults set")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Watch mode is long running, so log lines always go to the console.
		session, err := internal.NewSession(conf.LogDir, conf.Source, internal.ParseLevel(conf.LogLevel), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer session.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "Log file: %s\n", session.LogPath)

		pipe, err := internal.NewPipeline(conf, session.Logger, nil)
		if err != nil {
			return err
		}
		defer pipe.Close()

		// One lock covers the initial batch and the whole watch.
		unlock, err := internal.LockDestination(conf.Destination)
		if err != nil {
			return fmt.Errorf("lock destination: %w", err)
		}
		defer unlock()

		metrics := internal.NewMetrics()
		coord := internal.NewCoordinator(pipe.Ingestor, conf.Workers, session.Logger,
			internal.WithMetrics(metrics), internal.WithHeldLock())
		summary, err := coord.Run(ctx, conf.Source, conf.Destination)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), internal.RenderSummary(summary))
		if ctx.Err() != nil {
			return nil
		}

		watcher, err := internal.NewWatcher(pipe.Ingestor, conf.Destination, conf.WatchSettle, conf.Workers, session.Logger, func(r internal.Result) {
			metrics.Observe(r)
			if conf.MetricsFile == "" {
				return
			}
			if err := metrics.WriteTextfile(conf.MetricsFile); err != nil {
				session.Logger.Warn(fmt.Sprintf("Failed to write metrics to %s: %v", conf.MetricsFile, err))
			}
		})
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		return watcher.Run(ctx, conf.Source)
	},
}

func init() {
	addImportFlags(watchCmd)
	watchCmd.Flags().StringVar(&settleFlag, "settle", "", "Quiet period before a new file is ingested (e.g. 2s)")
	rootCmd.AddCommand(watchCmd)
}
