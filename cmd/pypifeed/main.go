package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pypifeed/internal/cli"
	pferrors "github.com/matzehuels/pypifeed/pkg/errors"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2   // INVALID_INPUT: bad flags, arguments or config
	exitInterrupted = 130 // SIGINT/SIGTERM
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes pypifeed with args, logging and reporting errors to stderr,
// and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	var verbose bool

	c := cli.New(stderr, cli.LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetErr(stderr)
	root.SilenceErrors = true
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	// The level must be set before the root pre-run hands the logger to the hooks.
	attachLogger := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if verbose {
			c.SetLogLevel(cli.LogDebug)
		}
		return attachLogger(cmd, args)
	}

	err := root.ExecuteContext(ctx)
	code := exitCode(err)
	if code != exitOK && code != exitInterrupted {
		fmt.Fprintln(stderr, err)
	}
	return code
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case pferrors.Is(err, pferrors.ErrCodeInvalidInput):
		return exitUsage
	default:
		return exitFailure
	}
}
