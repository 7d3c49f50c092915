package main

import (
	"fmt"

	"agentctl/internal/app"
	"agentctl/internal/command"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdVersion)
}

var cmdVersion = &cobra.Command{
	Use:   "version",
	Short: "Print the agentctl version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, err := controllerFactory()
		if err != nil {
			return err
		}
		res, err := controller.Exec(cmd.Context(), app.ExecParams{Command: command.Version})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if done, err := encode(out, res.Output); done {
			return err
		}
		fmt.Fprintf(out, "agentctl %v\n", res.Output["version"])
		return nil
	},
}
