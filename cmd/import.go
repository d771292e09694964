package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mediasort/internal"
)

var (
	workersFlag  int
	exiftoolFlag bool
	verboseFlag  bool
	noDedupeFlag bool
	metricsFlag  string
)

var importCmd = &cobra.Command{
	Use:   "import [source] [destination]",
	Short: "Copy media files into the destination, organized by capture date",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}
		applyImportFlags(cmd, conf, args)

		if conf.Source == "" || conf.Destination == "" {
			return fmt.Errorf("missing source or destination and no defaults set")
		}
		info, err := os.Stat(conf.Source)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("folder does not exist or is not a directory: %s", conf.Source)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, logPath, err := runImport(ctx, conf, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, internal.RenderSummary(summary))
		fmt.Fprintf(out, "Log file: %s\n", logPath)
		return nil
	},
}

// runImport executes one batch with a fresh session and pipeline.
func runImport(ctx context.Context, conf *internal.Config, stderr io.Writer) (*internal.Summary, string, error) {
	// A progress bar and console log lines would fight over the terminal.
	showProgress := isTerminal(stderr) && !verboseFlag
	var console io.Writer = stderr
	if showProgress {
		console = nil
	}

	session, err := internal.NewSession(conf.LogDir, conf.Source, internal.ParseLevel(conf.LogLevel), console)
	if err != nil {
		return nil, "", err
	}
	defer session.Close()
	session.Logger.Info(fmt.Sprintf("Run %s started (mediasort %s)", session.ID, Version))

	pipe, err := internal.NewPipeline(conf, session.Logger, nil)
	if err != nil {
		return nil, session.LogPath, err
	}
	defer pipe.Close()

	metrics := internal.NewMetrics()
	opts := []internal.CoordinatorOption{internal.WithMetrics(metrics)}
	if showProgress {
		opts = append(opts, internal.WithObserver(&progressObserver{w: stderr}))
	}

	coord := internal.NewCoordinator(pipe.Ingestor, conf.Workers, session.Logger, opts...)
	summary, err := coord.Run(ctx, conf.Source, conf.Destination)
	if err != nil {
		return nil, session.LogPath, err
	}
	session.Logger.Info(fmt.Sprintf("Run %s finished", session.ID))

	if conf.MetricsFile != "" {
		if err := metrics.WriteTextfile(conf.MetricsFile); err != nil {
			session.Logger.Warn(fmt.Sprintf("Failed to write metrics to %s: %v", conf.MetricsFile, err))
		}
	}
	return summary, session.LogPath, nil
}

func applyImportFlags(cmd *cobra.Command, conf *internal.Config, args []string) {
	if len(args) > 0 {
		conf.Source = args[0]
	}
	if len(args) > 1 {
		conf.Destination = args[1]
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		conf.Workers = workersFlag
	}
	if flags.Changed("exiftool") {
		conf.UseExifTool = exiftoolFlag
	}
	if flags.Changed("no-dedupe") {
		conf.SkipDuplicates = !noDedupeFlag
	}
	if flags.Changed("metrics-file") {
		conf.MetricsFile = metricsFlag
	}
	if conf.Workers < 1 {
		conf.Workers = internal.DefaultWorkers
	}
}

func addImportFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&workersFlag, "workers", internal.DefaultWorkers, "Number of files processed in parallel")
	cmd.Flags().BoolVar(&exiftoolFlag, "exiftool", false, "Also use the exiftool binary for capture dates")
	cmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Print log lines instead of a progress bar")
	cmd.Flags().BoolVar(&noDedupeFlag, "no-dedupe", false, "Never skip duplicates; always give conflicting files a new name")
	cmd.Flags().StringVar(&metricsFlag, "metrics-file", "", "Write Prometheus metrics to this file after the run")
}

type progressObserver struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (p *progressObserver) Started(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("Importing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *progressObserver) Finished(internal.Result) {
	_ = p.bar.Add(1)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func init() {
	addImportFlags(importCmd)
	rootCmd.AddCommand(importCmd)
}
