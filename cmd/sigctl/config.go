package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigbench/sigctl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file populated with the defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigPath
		if len(args) > 0 {
			path = args[0]
		}

		if err := config.ValidatePath(path); err == nil {
			return fmt.Errorf("refusing to overwrite existing config at %s", path)
		}

		defaults := config.Defaults()
		if err := config.Save(path, &defaults); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "config written to", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
