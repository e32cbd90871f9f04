// Command ft is the user-facing CLI: it reads the daemon's on-disk
// state (crash/incident bundles, configuration, append log) but never
// owns the observation runtime itself — that lives in cmd/ftd.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/ft/internal/config"
)

var rootDir string

// cliExitError carries the process exit code a subcommand wants,
// distinguishing "bad usage" (2) and "unknown code" (64) from a plain
// failure (1) per spec §6.8.
type cliExitError struct {
	code int
	err  error
}

func (e *cliExitError) Error() string { return e.err.Error() }
func (e *cliExitError) Unwrap() error { return e.err }

func exitErr(code int, format string, args ...any) error {
	return &cliExitError{code: code, err: fmt.Errorf(format, args...)}
}

func exitCodeOf(err error) int {
	var e *cliExitError
	if errors.As(err, &e) {
		return e.code
	}
	return 1
}

func resolvePaths() (config.Paths, error) {
	return config.NewPaths(rootDir)
}

func main() {
	root := &cobra.Command{
		Use:           "ft",
		Short:         "ft — passive terminal observation & reflow engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rootDir, "root", "", "data root directory (default ~/.ft)")
	root.AddCommand(whyCmd(), bundleCmd(), indexCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ft: %v\n", err)
		os.Exit(exitCodeOf(err))
	}
}
