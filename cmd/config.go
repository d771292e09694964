package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediasort/internal"
)

var forceFlag bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the mediasort config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFlag
		if path == "" {
			p, err := internal.DefaultConfigPath()
			if err != nil {
				return err
			}
			path = p
		}
		conf, err := internal.DefaultConfig()
		if err != nil {
			return err
		}
		if err := internal.WriteConfig(conf, path, forceFlag); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := conf.MarshalTOML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func parseSettle(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid settle delay %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("settle delay must not be negative: %s", s)
	}
	return d, nil
}

func init() {
	configInitCmd.Flags().BoolVar(&forceFlag, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
