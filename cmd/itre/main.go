// Command itre reconstructs a learner-facing step sequence from a raw
// instrumentation event stream (see internal/trace): a root command
// plus a small set of focused subcommands.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
