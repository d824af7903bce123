package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigbench/sigctl/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan [device]",
	Short: "Scan for Wi-Fi networks and print the strongest ESSID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		essid, err := scan.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), essid)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
