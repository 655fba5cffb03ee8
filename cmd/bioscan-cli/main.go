// Command bioscan-cli ranks reference receptors by similarity to a protein query.
package main

import (
	"errors"
	"fmt"
	"os"

	"yashubustudio/bioscan/bioscan"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bioscan-cli: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode separates bad input (2) from runtime failures (1).
func exitCode(err error) int {
	if errors.Is(err, bioscan.ErrValidation) {
		return 2
	}
	return 1
}
