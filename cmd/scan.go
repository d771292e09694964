package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"mediasort/internal"
)

var scanCmd = &cobra.Command{
	Use:   "scan [folder]",
	Short: "Report what an import would see without copying anything",
	Long: `Classify every file under a folder and resolve capture dates the same
way import does. Nothing is written and no session log is created.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder := args[0]

		info, err := os.Stat(folder)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("folder does not exist or is not a directory: %s", folder)
		}

		conf, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("exiftool") {
			conf.UseExifTool = exiftoolFlag
		}

		// Only problems reach the console; per-file decisions belong to import.
		logger := internal.NewLogger(cmd.ErrOrStderr(), internal.ParseLevel("warn"))
		pipe, err := internal.NewPipeline(conf, logger, nil)
		if err != nil {
			return err
		}
		defer pipe.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		report, err := internal.AnalyzeFolder(ctx, folder, pipe, conf.Workers)
		if err != nil {
			return fmt.Errorf("failed to analyze folder: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), internal.RenderScan(report))
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&exiftoolFlag, "exiftool", false, "Also use the exiftool binary for capture dates")
	rootCmd.AddCommand(scanCmd)
}
