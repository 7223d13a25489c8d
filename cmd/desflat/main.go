// desflat elaborates parameterised discrete-event system models into flat
// plant automata and requirement invariants.
//
// Usage:
//
//	desflat elaborate plant.des
//	desflat validate models/
//	desflat fmt --check models/*.des
//
// Exit codes:
//   - 0: Success
//   - 1: Model or check failure
//   - 2: Command error (bad flags, unreadable files)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/desflat/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return
	}

	// Commands report their own failures; anything else is a usage error
	// from cobra.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'desflat --help' for usage.")
		stop()
		os.Exit(cli.ExitCommandError)
	}
	stop()
	os.Exit(exitErr.Code)
}
