package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/abdul-hamid-achik/hitquery/packages/behaviors"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hitquery",
	Short: "Query HTTP APIs through composable behaviors.",
	Long: `hitquery sends requests through a pipeline of behaviors: header
injection, bearer tokens, timeouts, caching, retries and parsing. Each
flag attaches one behavior to the request.`,
	SilenceErrors: true,
}

// exitError carries the process exit code for a failed command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode maps an error returned by a command to a process exit code.
// Errors not raised by a command body come from cobra's argument and flag
// handling.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsageError
}

// commandContext returns the command's context, or Background when it
// runs outside Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	behaviors.Version = v
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}
