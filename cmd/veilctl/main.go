// Command veilctl operates veil keys and values from the shell, and runs
// the key admin server with scheduled sweeps.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
