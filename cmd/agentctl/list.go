package main

import (
	"fmt"
	"text/tabwriter"

	"agentctl/internal/app"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdList)
}

var cmdList = &cobra.Command{
	Use:   "list",
	Short: "List processes that can be attached to",
	Long:  `Scans the runtime directory for processes that installed the agent and are still alive.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, err := controllerFactory()
		if err != nil {
			return err
		}
		procs, err := controller.List(cmd.Context())
		if err != nil {
			return err
		}
		if procs == nil {
			procs = []app.Process{}
		}

		out := cmd.OutOrStdout()
		if done, err := encode(out, procs); done {
			return err
		}
		if len(procs) == 0 {
			fmt.Fprintln(out, "No attachable processes found")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PID\tNAME")
		for _, p := range procs {
			fmt.Fprintf(tw, "%s\t%s\n", p.ID, p.Display)
		}
		return tw.Flush()
	},
}
