package main

import (
	"errors"
	"fmt"
	"os"
)

// exitCancelled is the conventional status for a run ended by SIGINT.
const exitCancelled = 130

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errCancelled) {
			fmt.Fprintln(os.Stderr, "Cancelled.")
			os.Exit(exitCancelled)
		}

		exitOnError(err)
	}
}
