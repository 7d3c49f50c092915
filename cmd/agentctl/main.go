package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"agentctl/internal/app"
	"agentctl/internal/attach"
	"agentctl/internal/command"
	"agentctl/internal/config"
	"agentctl/internal/logging"

	"github.com/spf13/cobra"
)

// exitTempFail is EX_TEMPFAIL from sysexits.h: the target was not ready and
// the same command may succeed if repeated.
const exitTempFail = 75

var (
	configPath   string
	logLevel     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "agentctl [command]",
	Short: "agentctl: attach to running processes and control their agent",
	Long: `agentctl finds processes that installed the agentctl agent, attaches to
one of them by pid or by a pattern over its name, and starts, stops or
queries its management endpoint.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json or yaml")
}

// controllerAPI is what the commands need from app.App.
type controllerAPI interface {
	List(ctx context.Context) ([]app.Process, error)
	Exec(ctx context.Context, params app.ExecParams) (app.ExecResult, error)
}

var controllerFactory = func() (controllerAPI, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return app.New(app.Options{
		Config: cfg,
		Logger: logging.New(cfg.Log, os.Stderr),
	}), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(report(os.Stderr, err))
}

// report prints err and returns the process exit code for it.
func report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, attach.ErrTransient) {
		fmt.Fprintf(w, "Warning: %v\nThe target was not ready; retry the command.\n", err)
		return exitTempFail
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	if errors.Is(err, command.ErrUnknownCommand) {
		fmt.Fprintln(w, "Run `agentctl --help` for the list of commands.")
	}
	return 1
}
