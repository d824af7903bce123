package main

import (
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert the recorded capture file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return controller.engine.Convert(
			cmd.Context(),
			controller.sup.FileName(),
			controller.sup.RunTime(),
		)
	},
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Plot the converted capture data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return controller.engine.Plot(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(plotCmd)
}
