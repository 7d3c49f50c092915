package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"agentctl/internal/app"
	"agentctl/internal/command"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var agentAddr string

var (
	cmdStart  = newAgentCommand(command.Start, "Start the management agent in a process")
	cmdStop   = newAgentCommand(command.Stop, "Stop the management agent in a process")
	cmdStatus = newAgentCommand(command.Status, "Show whether a process's management agent is running")
	cmdToggle = newAgentCommand(command.Toggle, "Start the agent if it is stopped, stop it if it is running")
)

func init() {
	for _, c := range []*cobra.Command{cmdStart, cmdToggle} {
		c.Flags().StringVar(&agentAddr, "addr", "", "Listen address for the management endpoint (default: the address the target agent was installed with)")
	}
	rootCmd.AddCommand(cmdStart, cmdStop, cmdStatus, cmdToggle)
}

func newAgentCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <pid|pattern>",
		Short: short,
		Long: short + `.

The argument is either a process id from ` + "`agentctl list`" + ` or a regular
expression matched against process names. A pattern must match exactly one
process.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := controllerFactory()
			if err != nil {
				return err
			}
			params := app.ExecParams{Selector: args[0], Command: name}
			if agentAddr != "" && (name == command.Start || name == command.Toggle) {
				params.Args = map[string]any{"addr": agentAddr}
			}

			var res app.ExecResult
			err = withSpinner(cmd.ErrOrStderr(), fmt.Sprintf(" attaching to %s…", args[0]), func() error {
				var err error
				res, err = controller.Exec(cmd.Context(), params)
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if done, err := encode(out, res); done {
				return err
			}
			fmt.Fprintln(out, describe(res))
			return nil
		},
	}
}

func describe(res app.ExecResult) string {
	running, _ := res.Output["running"].(bool)
	changed, _ := res.Output["changed"].(bool)
	url, _ := res.Output["url"].(string)
	switch {
	case running && changed:
		return fmt.Sprintf("Process %s: agent started at %s", res.Target, url)
	case running:
		return fmt.Sprintf("Process %s: agent running at %s", res.Target, url)
	case changed:
		return fmt.Sprintf("Process %s: agent stopped", res.Target)
	default:
		return fmt.Sprintf("Process %s: agent not running", res.Target)
	}
}

// withSpinner runs fn with a spinner on w when w is a terminal.
func withSpinner(w io.Writer, suffix string, fn func() error) error {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return fn()
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = suffix
	s.Start()
	defer s.Stop()
	return fn()
}

