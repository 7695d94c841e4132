package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes
const (
	exitMatch    = 0
	exitMismatch = 1
	exitFailure  = 2
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "verifier",
		Short:         "Verify submission fingerprints against the on-chain record store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newVerifyCmd(),
		newFingerprintCmd(),
	)
	return root
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintln(os.Stderr, "Error:", exit.err)
		}
		os.Exit(exit.code)
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(exitFailure)
}
