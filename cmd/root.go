package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediasort/internal"
)

// Version is overridden at build time or from the embedded VERSION file.
var Version = "dev"

var configFlag string

var rootCmd = &cobra.Command{
	Use:          "mediasort",
	Short:        "Sort photos and videos into YYYY/MM/DD by capture date",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

// ApplyVersion copies Version onto the root command.
func ApplyVersion() {
	rootCmd.Version = Version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mediasort version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mediasort %s\n", Version)
	},
}

func loadConfig() (*internal.Config, error) {
	return internal.LoadConfig(configFlag)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: <user config dir>/mediasort/mediasort.toml)")
	rootCmd.AddCommand(versionCmd)
	ApplyVersion()
}
