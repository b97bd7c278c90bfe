// Command bootcode runs, checks and repairs handheld boot code listings.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bootcode: %v\n", err)
		os.Exit(1)
	}
}
