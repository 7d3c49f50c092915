package main

import (
	"fmt"

	"agentctl/internal/tui"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdTUI)
}

var cmdTUI = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, err := controllerFactory()
		if err != nil {
			return err
		}
		if err := tui.Run(controller); err != nil {
			return fmt.Errorf("tui exited with error: %w", err)
		}
		return nil
	},
}
